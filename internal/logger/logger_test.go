package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"prod", Options{Env: "prod"}, false},
		{"local", Options{Env: "local"}, false},
		{"docker json", Options{Env: "docker", Format: "json"}, false},
		{"prod console debug", Options{Env: "prod", Format: "console", Level: "debug"}, false},
		{"unknown env", Options{Env: "staging"}, true},
		{"invalid level", Options{Env: "local", Level: "loud"}, true},
		{"invalid format", Options{Env: "local", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLogger(tc.opts)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && l == nil {
				t.Fatal("expected logger")
			}
		})
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger(Options{Env: "local", Level: "warn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info must be disabled at warn level")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}

	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected stored logger")
	}
}

func TestFromContextOr(t *testing.T) {
	def := zap.NewExample()
	if FromContextOr(context.Background(), def) != def {
		t.Error("expected fallback logger")
	}
	if FromContextOr(context.Background(), nil) == nil {
		t.Error("expected nop logger for nil fallback")
	}

	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContextOr(ctx, def) != l {
		t.Error("context logger must win over fallback")
	}
}

func TestWith_ScopesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx, _ := With(context.Background(), base, zap.String("run_id", "r1"))
	ctx, _ = With(ctx, nil, zap.String("id", "base1-4"))
	FromContext(ctx).Info("stored")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["run_id"] != "r1" || fields["id"] != "base1-4" {
		t.Errorf("fields = %v", fields)
	}
}
