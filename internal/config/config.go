package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable knob. Values come from the environment, with
// a local .env picked up in dev.
type Config struct {
	Addr        string
	DatabaseURL string

	LobbyWait             time.Duration
	BattleTimeoutStandard time.Duration
	BattleTimeoutWorld    time.Duration
	RetaliateMinStandard  time.Duration
	RetaliateMaxStandard  time.Duration
	RetaliateMinWorld     time.Duration
	RetaliateMaxWorld     time.Duration

	SpawnTick            time.Duration
	SpawnBaseChance      float64
	SpawnCooldownDefeat  time.Duration
	SpawnCooldownDespawn time.Duration
	SpecialSpawnChance   float64
	ActivityWindow       time.Duration
}

func Load() (Config, error) {
	// Missing .env is fine outside dev.
	_ = godotenv.Load()

	cfg := Config{
		Addr:                  getStr("ADDR", ":8080"),
		DatabaseURL:           getStr("DATABASE_URL", ""),
		LobbyWait:             getDur("LOBBY_WAIT", 2*time.Minute),
		BattleTimeoutStandard: getDur("BATTLE_TIMEOUT_STANDARD", 15*time.Minute),
		BattleTimeoutWorld:    getDur("BATTLE_TIMEOUT_WORLD", 30*time.Minute),
		RetaliateMinStandard:  getDur("RETALIATE_MIN_STANDARD", 8*time.Second),
		RetaliateMaxStandard:  getDur("RETALIATE_MAX_STANDARD", 16*time.Second),
		RetaliateMinWorld:     getDur("RETALIATE_MIN_WORLD", 18*time.Second),
		RetaliateMaxWorld:     getDur("RETALIATE_MAX_WORLD", 30*time.Second),
		SpawnTick:             getDur("SPAWN_TICK", 5*time.Minute),
		SpawnBaseChance:       getFloat("SPAWN_BASE_CHANCE", 0.15),
		SpawnCooldownDefeat:   getDur("SPAWN_COOLDOWN_DEFEAT", 45*time.Minute),
		SpawnCooldownDespawn:  getDur("SPAWN_COOLDOWN_DESPAWN", 45*time.Minute),
		SpecialSpawnChance:    getFloat("SPECIAL_SPAWN_CHANCE", 0.5),
		ActivityWindow:        getDur("ACTIVITY_WINDOW", 30*time.Minute),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func getStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
