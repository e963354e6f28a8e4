package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("TICK_INTERVAL_MS", "")
	t.Setenv("RATE_LIMIT_RPS", "")

	cfg := Load()
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 10.0, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.FinalWriteAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("VIOLATION_DEBOUNCE_MS", "750")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("MAX_DB_CONNS", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://exam.example.com, ,http://localhost:5173 ")

	cfg := Load()
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.ViolationDebounce)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.EqualValues(t, 16, cfg.MaxDBConns)
	assert.Equal(t, []string{"https://exam.example.com", "http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestKeys(t *testing.T) {
	id := uuid.MustParse("0b6f3c1e-7a9d-4d02-8b7e-2a1b7c9e4f10")
	assert.Equal(t, "proctor:exam:code:PHYS-1", Keys.ExamByCode("PHYS-1"))
	assert.Equal(t, "proctor:exam:0b6f3c1e-7a9d-4d02-8b7e-2a1b7c9e4f10:questions", Keys.ExamQuestions(id))
	assert.Equal(t, "proctor:exam:0b6f3c1e-7a9d-4d02-8b7e-2a1b7c9e4f10:monitor", Keys.ExamMonitor(id))
	assert.Equal(t, "proctor:violations:audit", Keys.ViolationQueue())
}
