package main

import (
	"testing"

	"classd/internal/config"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestMergeConfigFlagsWin(t *testing.T) {
	cfg := config.Config{Addr: ":8080", CacheSize: 2, LogLevel: "info"}
	mergeConfig(&cfg, config.Config{Addr: ":9090", MaxTextLen: 1000})
	if cfg.Addr != ":9090" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.MaxTextLen != 1000 {
		t.Fatalf("max_text_len=%d", cfg.MaxTextLen)
	}
	// Unset flags must not clobber file values.
	if cfg.CacheSize != 2 || cfg.LogLevel != "info" {
		t.Fatalf("file values clobbered: %+v", cfg)
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg config.Config
	applyDefaults(&cfg)
	if cfg.Addr != ":8080" || cfg.ManifestsDir == "" || cfg.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	cfg = config.Config{Addr: ":1234", LogLevel: "debug"}
	applyDefaults(&cfg)
	if cfg.Addr != ":1234" || cfg.LogLevel != "debug" {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	l := newLogger("nonsense")
	if l.GetLevel().String() != "info" {
		t.Fatalf("level=%s", l.GetLevel())
	}
	l = newLogger("warn")
	if l.GetLevel().String() != "warn" {
		t.Fatalf("level=%s", l.GetLevel())
	}
}
