package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeService struct {
	name     string
	startErr error
	exitNow  bool

	mu      sync.Mutex
	stopped bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil || s.exitNow {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *fakeService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeService) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRunnerStopsAllOnContextCancel(t *testing.T) {
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b"}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewRunner(a, b).Run(ctx, time.Second, nil) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancel should end runner cleanly, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("runner did not stop after cancel")
	}
	if !a.wasStopped() || !b.wasStopped() {
		t.Fatalf("all services should be stopped")
	}
}

func TestRunnerPropagatesStartError(t *testing.T) {
	boom := errors.New("listen failed")
	failing := &fakeService{name: "http", startErr: boom}
	worker := &fakeService{name: "worker"}

	err := NewRunner(failing, worker).Run(context.Background(), time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if !worker.wasStopped() {
		t.Fatalf("sibling service should be stopped after failure")
	}
}

func TestRunnerServiceExitStopsOthers(t *testing.T) {
	quick := &fakeService{name: "quick", exitNow: true}
	long := &fakeService{name: "long"}

	if err := NewRunner(quick, long).Run(context.Background(), time.Second, nil); err != nil {
		t.Fatalf("clean exit should not be an error, got %v", err)
	}
	if !long.wasStopped() {
		t.Fatalf("long running service should be stopped")
	}
}

func TestRunnerRejectsEmpty(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
	if err := NewRunner(nil).Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]string{"": ModeAll, " API ": ModeAPI, "worker": ModeWorker, "all": ModeAll}
	for raw, want := range cases {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) want %s got %s err=%v", raw, want, got, err)
		}
	}
	if _, err := ParseMode("cron"); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}
