package session

import "raidsrv/internal/player"

// Command helpers pair the inbox send with the reply receive so callers never
// block on a runner that has already exited. A runner that shut down first
// answers with its last snapshot, which is exactly the silent no-op a command
// racing the end of an encounter is owed.

func (r *Runner) do(msg Msg, reply chan Result) Result {
	select {
	case r.inbox <- msg:
	case <-r.done:
		return Result{Snapshot: r.finalSnap}
	}
	select {
	case res := <-reply:
		return res
	case <-r.done:
		return Result{Snapshot: r.finalSnap}
	}
}

func (r *Runner) Join(snap player.CombatSnapshot) Result {
	reply := make(chan Result, 1)
	return r.do(Join{Snap: snap, Reply: reply}, reply)
}

func (r *Runner) Vote(actorID string, operator bool) Result {
	reply := make(chan Result, 1)
	return r.do(VoteStart{ActorID: actorID, Operator: operator, Reply: reply}, reply)
}

func (r *Runner) Attack(actorID string) Result {
	reply := make(chan Result, 1)
	return r.do(Attack{ActorID: actorID, Reply: reply}, reply)
}

func (r *Runner) Leave(actorID string) Result {
	reply := make(chan Result, 1)
	return r.do(Leave{ActorID: actorID, Reply: reply}, reply)
}

// Render returns the current snapshot, or the final one once the loop is gone.
func (r *Runner) Render() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case r.inbox <- Render{Reply: reply}:
	case <-r.done:
		return r.finalSnap
	}
	select {
	case snap := <-reply:
		return snap
	case <-r.done:
		return r.finalSnap
	}
}

// AddWatcher registers a snapshot outbox. It reports false when the runner is
// already gone, in which case the caller should render finality itself.
func (r *Runner) AddWatcher(id string, outbox chan Snapshot) bool {
	select {
	case r.inbox <- Watch{ID: id, Outbox: outbox}:
		return true
	case <-r.done:
		return false
	}
}

func (r *Runner) RemoveWatcher(id string) {
	select {
	case r.inbox <- Unwatch{ID: id}:
	case <-r.done:
	}
}

// Stop asks the loop to exit. Safe to call on a runner that already has.
func (r *Runner) Stop() {
	select {
	case r.inbox <- Shutdown{}:
	case <-r.done:
	}
}
