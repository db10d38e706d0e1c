package e2e

import (
	"context"
	"testing"
	"time"

	"trending-service/internal/control"
	"trending-service/internal/core/config"
	"trending-service/internal/infra/source"
)

func TestGracefulShutdown(t *testing.T) {
	// Memory storage and a far-off schedule: enough to start every component
	// without doing real work.
	now := time.Now()
	cfg := control.Config{
		App: config.AppConfig{
			Server: config.ServerConfig{Port: 0},
			Schedule: config.ScheduleConfig{
				FetchHour:     (now.Hour() + 12) % 24,
				CleanupHour:   (now.Hour() + 6) % 24,
				PollInterval:  100 * time.Millisecond,
				RetentionDays: 30,
			},
			Sources: []source.Config{
				{Name: "hackernews", Category: "tech", Enabled: true},
			},
		},
	}

	svc, err := control.NewService(cfg)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let the scheduler tick a few times
	time.Sleep(500 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	done := make(chan error, 1)
	go func() {
		done <- svc.Stop(stopCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Error("Stop did not return within 10s")
	}
}
