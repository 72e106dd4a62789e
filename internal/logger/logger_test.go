package logger

import "testing"

func TestNew(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{Level: "debug", Format: "json"},
		{Level: "warn", Format: "console"},
	} {
		log, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%+v): %v", cfg, err)
		}
		log.Info("hello")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}
