// Package store persists session rows, one per channel. Rows only live for
// the duration of an encounter; everything is wiped at process start, so
// there is no cross-restart durability to worry about.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"raidsrv/internal/raid"
)

type Sessions interface {
	Save(ctx context.Context, s *raid.Session) error
	Delete(ctx context.Context, channel string) error
	Has(ctx context.Context, channel string) (bool, error)
	// ClearAll wipes every in-flight row. Called once at startup.
	ClearAll(ctx context.Context) error
}

// SessionRow is the persisted shape of a raid.Session. Participants ride
// along as a JSON column; they are only ever read back whole.
type SessionRow struct {
	Channel      string              `gorm:"primaryKey;size:64"`
	Level        int                 `gorm:"not null"`
	BossName     string              `gorm:"size:128;not null"`
	Element      string              `gorm:"size:16;not null"`
	Health       int                 `gorm:"not null"`
	MaxHealth    int                 `gorm:"not null"`
	Attack       int                 `gorm:"not null"`
	Defense      int                 `gorm:"not null"`
	Participants []*raid.Participant `gorm:"serializer:json"`
	Phase        string              `gorm:"size:16;not null"`
	Scaled       bool                `gorm:"not null"`
	World        bool                `gorm:"not null"`
	Rarity       string              `gorm:"size:16;not null"`
	Source       string              `gorm:"size:16;not null"`
	UpdatedAt    time.Time
}

func (SessionRow) TableName() string { return "raid_sessions" }

func rowFromSession(s *raid.Session) SessionRow {
	return SessionRow{
		Channel:      s.Channel,
		Level:        s.Level,
		BossName:     s.BossName,
		Element:      string(s.Element),
		Health:       s.Health,
		MaxHealth:    s.MaxHealth,
		Attack:       s.Attack,
		Defense:      s.Defense,
		Participants: s.Participants,
		Phase:        string(s.Phase),
		Scaled:       s.Scaled,
		World:        s.World,
		Rarity:       string(s.Rarity),
		Source:       string(s.Source),
	}
}

type DB struct {
	db *gorm.DB
}

func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&SessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Save(ctx context.Context, s *raid.Session) error {
	row := rowFromSession(s)
	if err := d.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save session %s: %w", s.Channel, err)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, channel string) error {
	if err := d.db.WithContext(ctx).Delete(&SessionRow{}, "channel = ?", channel).Error; err != nil {
		return fmt.Errorf("delete session %s: %w", channel, err)
	}
	return nil
}

func (d *DB) Has(ctx context.Context, channel string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&SessionRow{}).Where("channel = ?", channel).Count(&count).Error; err != nil {
		return false, fmt.Errorf("lookup session %s: %w", channel, err)
	}
	return count > 0, nil
}

func (d *DB) ClearAll(ctx context.Context) error {
	if err := d.db.WithContext(ctx).Where("1 = 1").Delete(&SessionRow{}).Error; err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

// Memory satisfies Sessions without a database; used by tests.
type Memory struct {
	mu   sync.Mutex
	rows map[string]SessionRow
	// FailNext makes the next write fail, for exercising the retry policy.
	FailNext bool
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]SessionRow)}
}

func (m *Memory) Save(_ context.Context, s *raid.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext {
		m.FailNext = false
		return fmt.Errorf("save session %s: storage unavailable", s.Channel)
	}
	m.rows[s.Channel] = rowFromSession(s)
	return nil
}

func (m *Memory) Delete(_ context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, channel)
	return nil
}

func (m *Memory) Has(_ context.Context, channel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[channel]
	return ok, nil
}

func (m *Memory) ClearAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.rows)
	return nil
}

// Row returns a stored row copy, for tests.
func (m *Memory) Row(channel string) (SessionRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[channel]
	return row, ok
}
