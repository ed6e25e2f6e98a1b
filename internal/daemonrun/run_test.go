package daemonrun_test

import (
	"context"
	"os"
	"testing"

	"mediaflow/internal/daemonrun"
	"mediaflow/internal/testsupport"
)

func TestRunReturnsWhenContextEnds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := daemonrun.Run(ctx, cfg, daemonrun.Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := daemonrun.ReadPID(cfg); !os.IsNotExist(err) {
		t.Fatalf("expected pid file to be removed, got %v", err)
	}
	if _, err := os.Stat(cfg.StorePath()); err != nil {
		t.Fatalf("expected store to be created: %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("expected error without config")
	}
}
