package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sydlexius/soundalike/internal/catalog"
	"github.com/sydlexius/soundalike/internal/catalog/catalogtest"
)

func TestWarmUp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ok := &catalogtest.Fake{PingFn: func(context.Context) error { return nil }}
	if err := warmUp(ok, time.Second, logger); err != nil {
		t.Fatalf("warmUp: %v", err)
	}

	authErr := &catalog.ErrAuth{Catalog: "fake", Cause: errors.New("invalid_client")}
	bad := &catalogtest.Fake{PingFn: func(context.Context) error { return authErr }}
	err := warmUp(bad, time.Second, logger)
	var ae *catalog.ErrAuth
	if !errors.As(err, &ae) {
		t.Errorf("err = %v, want wrapped ErrAuth", err)
	}

	var deadline bool
	slow := &catalogtest.Fake{PingFn: func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	}}
	_ = warmUp(slow, time.Second, logger)
	if !deadline {
		t.Error("warm-up call should be bounded by the catalog timeout")
	}
}
