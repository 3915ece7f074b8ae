package config

import (
	"testing"
	"time"
)

func TestNormalizeReplacesInvalidValues(t *testing.T) {
	c := &Config{
		BatchSize:     0,
		FlushInterval: -5 * time.Second,
		QueueCapacity: -1,
	}
	c.Normalize()

	if c.BatchSize != DefaultBatchSize {
		t.Errorf("expected batch size %d, got %d", DefaultBatchSize, c.BatchSize)
	}
	if c.FlushInterval != DefaultFlushInterval {
		t.Errorf("expected flush interval %v, got %v", DefaultFlushInterval, c.FlushInterval)
	}
	if c.QueueCapacity != DefaultQueueCapacity {
		t.Errorf("expected queue capacity %d, got %d", DefaultQueueCapacity, c.QueueCapacity)
	}
}

func TestNormalizeKeepsValidValues(t *testing.T) {
	c := &Config{
		BatchSize:     25,
		FlushInterval: 2 * time.Second,
		QueueCapacity: 500,
	}
	c.Normalize()

	if c.BatchSize != 25 || c.FlushInterval != 2*time.Second || c.QueueCapacity != 500 {
		t.Errorf("valid values were changed: %+v", c)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("BATCH_SIZE", "7")
	t.Setenv("FLUSH_INTERVAL_MS", "1500")
	t.Setenv("QUEUE_CAPACITY", "64")
	t.Setenv("DRAIN_ON_STOP", "true")
	t.Setenv("PROJECT_ID", "proj-x")

	c := Load()

	if c.BatchSize != 7 {
		t.Errorf("expected batch size 7, got %d", c.BatchSize)
	}
	if c.FlushInterval != 1500*time.Millisecond {
		t.Errorf("expected 1500ms, got %v", c.FlushInterval)
	}
	if c.QueueCapacity != 64 {
		t.Errorf("expected capacity 64, got %d", c.QueueCapacity)
	}
	if !c.DrainOnStop {
		t.Error("expected drain on stop enabled")
	}
	if c.ProjectID != "proj-x" {
		t.Errorf("expected project proj-x, got %s", c.ProjectID)
	}
}

func TestLoadFallsBackOnGarbage(t *testing.T) {
	t.Setenv("BATCH_SIZE", "not-a-number")
	c := Load()
	if c.BatchSize != DefaultBatchSize {
		t.Errorf("expected default %d, got %d", DefaultBatchSize, c.BatchSize)
	}
}

func TestDSN(t *testing.T) {
	c := &Config{
		DBUser:     "u",
		DBPassword: "p",
		DBHost:     "db",
		DBPort:     "3306",
		DBName:     "flagevents",
	}
	want := "u:p@tcp(db:3306)/flagevents?parseTime=true"
	if got := c.DSN(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
