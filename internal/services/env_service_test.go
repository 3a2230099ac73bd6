package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

func TestEnvironment_HostInfo(t *testing.T) {
	t.Parallel()
	s := NewEnvironmentService(EnvironmentOptions{Version: "1.2.3", TimelineSpan: time.Hour, ReadOnly: true})
	s.hostInfo = func(ctx context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{Hostname: "node-1", Platform: "debian", PlatformVersion: "12", Uptime: 99}, nil
	}

	env := s.GetEnvironmentData(context.Background())
	if env.SelfVersion != "1.2.3" || env.TimelineSpan != 3600000 || !env.IsReadOnly {
		t.Errorf("static fields = %+v", env)
	}
	if env.Hostname != "node-1" || env.Platform != "debian 12" || env.HostUptime != 99 {
		t.Errorf("host fields = %+v", env)
	}
	if env.GoVersion == "" {
		t.Error("GoVersion empty")
	}
}

func TestEnvironment_HostInfoFailure(t *testing.T) {
	t.Parallel()
	s := NewEnvironmentService(EnvironmentOptions{Version: "dev", Clustered: true})
	s.hostInfo = func(ctx context.Context) (*host.InfoStat, error) {
		return nil, errors.New("no /proc")
	}

	env := s.GetEnvironmentData(context.Background())
	if env.Hostname != "" || !env.Clustered || env.SelfVersion != "dev" {
		t.Errorf("env = %+v", env)
	}
}
