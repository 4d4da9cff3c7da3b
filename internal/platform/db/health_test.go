package db

import (
	"testing"
)

func TestPoolStats_Fields(t *testing.T) {
	stats := &PoolStats{
		TotalConns:    10,
		IdleConns:     5,
		AcquiredConns: 5,
		MaxConns:      20,
		Healthy:       true,
	}

	if stats.TotalConns != 10 {
		t.Errorf("expected TotalConns 10, got %d", stats.TotalConns)
	}
	if stats.IdleConns != 5 {
		t.Errorf("expected IdleConns 5, got %d", stats.IdleConns)
	}
	if stats.AcquiredConns != 5 {
		t.Errorf("expected AcquiredConns 5, got %d", stats.AcquiredConns)
	}
	if stats.MaxConns != 20 {
		t.Errorf("expected MaxConns 20, got %d", stats.MaxConns)
	}
	if !stats.Healthy {
		t.Error("expected Healthy to be true")
	}
}

func TestPoolStats_UnhealthyState(t *testing.T) {
	stats := &PoolStats{
		TotalConns: 0,
		MaxConns:   20,
		Healthy:    false,
	}

	if stats.Healthy {
		t.Error("expected Healthy to be false when TotalConns is 0")
	}
}
