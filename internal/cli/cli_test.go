package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/schedpanel/internal/config"
	"github.com/isdelr/schedpanel/internal/engine"
	"github.com/isdelr/schedpanel/internal/models"
	"github.com/isdelr/schedpanel/internal/testutil"
)

const jobsYAML = `
jobs:
  - name: nightly
    group: reports
    type: log
    data:
      message: report built
    triggers:
      - cron: "0 3 * * *"
      - name: warmup
        every: 30s
        repeatCount: 2
  - name: adhoc
    type: noop
`

func TestSeedJobs(t *testing.T) {
	ctx := testutil.TestContext(t)
	file, err := config.ParseJobs([]byte(jobsYAML))
	if err != nil {
		t.Fatalf("ParseJobs: %v", err)
	}
	scheduler := engine.NewCron(engine.CronConfig{}, nil)
	t.Cleanup(func() { scheduler.Shutdown(context.Background()) })

	if err := seedJobs(ctx, scheduler, file); err != nil {
		t.Fatalf("seedJobs: %v", err)
	}

	nightly := engine.NewJobKey("nightly", "reports")
	triggers, err := scheduler.TriggersOfJob(ctx, nightly)
	if err != nil {
		t.Fatal(err)
	}
	if len(triggers) != 2 {
		t.Fatalf("got %d triggers, want 2", len(triggers))
	}
	byName := map[string]engine.Trigger{}
	for _, tr := range triggers {
		byName[tr.Key.Name] = tr
	}
	generated, ok := byName["nightly-1"]
	if !ok || generated.Key.Group != "reports" || generated.Kind != engine.ScheduleCron {
		t.Fatalf("unnamed trigger = %+v", generated)
	}
	warmup, ok := byName["warmup"]
	if !ok || warmup.Kind != engine.ScheduleSimple || warmup.RepeatInterval != 30*time.Second || warmup.RepeatCount != 2 {
		t.Fatalf("warmup trigger = %+v", warmup)
	}

	adhoc, err := scheduler.JobDetail(ctx, engine.NewJobKey("adhoc", ""))
	if err != nil {
		t.Fatal(err)
	}
	if adhoc == nil || !adhoc.Durable {
		t.Fatalf("a job without triggers must be durable, got %+v", adhoc)
	}
}

func TestSeedJobs_UnknownType(t *testing.T) {
	file, err := config.ParseJobs([]byte("jobs:\n  - name: a\n    type: teleport\n"))
	if err != nil {
		t.Fatal(err)
	}
	scheduler := engine.NewCron(engine.CronConfig{}, nil)
	t.Cleanup(func() { scheduler.Shutdown(context.Background()) })

	if err := seedJobs(testutil.TestContext(t), scheduler, file); !errors.Is(err, engine.ErrJobTypeUnresolved) {
		t.Fatalf("err = %v, want ErrJobTypeUnresolved", err)
	}
}

func TestOpenSharedStore(t *testing.T) {
	ctx := testutil.TestContext(t)

	t.Run("single node", func(t *testing.T) {
		store, closeStore, err := openSharedStore(ctx, &config.Config{ClusterDriver: config.ClusterNone})
		if err != nil || store != nil {
			t.Fatalf("store = %v, err = %v", store, err)
		}
		closeStore()
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{
			ClusterDriver: config.ClusterSQLite,
			ClusterDSN:    filepath.Join(t.TempDir(), "events.db"),
		}
		store, closeStore, err := openSharedStore(ctx, cfg)
		if err != nil {
			t.Fatalf("openSharedStore: %v", err)
		}
		defer closeStore()

		id, err := store.Append(ctx, models.Event{Date: time.Now().UnixMilli(), Scope: models.ScopeJob, EventType: models.EventAdded})
		if err != nil || id != 1 {
			t.Fatalf("Append = %d, %v", id, err)
		}
	})

	t.Run("redis without address", func(t *testing.T) {
		_, _, err := openSharedStore(ctx, &config.Config{ClusterDriver: config.ClusterRedis})
		if !errors.Is(err, config.ErrInvalid) {
			t.Fatalf("err = %v, want ErrInvalid", err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := openSharedStore(ctx, &config.Config{ClusterDriver: "etcd"})
		if !errors.Is(err, config.ErrInvalid) {
			t.Fatalf("err = %v, want ErrInvalid", err)
		}
	})
}

func TestNewRedisClient(t *testing.T) {
	tests := map[string]string{
		"redis://cache:6380/2": "cache:6380",
		"localhost:6379":       "localhost:6379",
	}
	for dsn, addr := range tests {
		client, err := newRedisClient(dsn)
		if err != nil {
			t.Fatalf("newRedisClient(%q): %v", dsn, err)
		}
		if got := client.Options().Addr; got != addr {
			t.Errorf("newRedisClient(%q) addr = %q, want %q", dsn, got, addr)
		}
		client.Close()
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != Version {
		t.Fatalf("version output = %q, want %q", got, Version)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--operator", "ops", "--ttl", "1m"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if token := strings.TrimSpace(out.String()); strings.Count(token, ".") != 2 {
		t.Fatalf("output %q is not a JWT", token)
	}
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		retention time.Duration
		want      time.Duration
	}{
		{time.Second, time.Second},
		{time.Minute, 15 * time.Second},
		{time.Hour, time.Minute},
	}
	for _, tt := range tests {
		if got := sweepInterval(tt.retention); got != tt.want {
			t.Errorf("sweepInterval(%s) = %s, want %s", tt.retention, got, tt.want)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := newServeCmd()
	if err := cmd.ParseFlags([]string{"--port", "9090", "--read-only", "--jobs-file", "jobs.yaml"}); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{ServerPort: 8080, LogLevel: "debug"}
	if err := applyFlags(cmd, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != 9090 || !cfg.ReadOnly || cfg.JobsFile != "jobs.yaml" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unset flag overrode LogLevel: %q", cfg.LogLevel)
	}
}
