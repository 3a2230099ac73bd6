package services

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/isdelr/schedpanel/internal/models"
)

// EnvironmentServiceProvider defines the interface for describing the panel process.
type EnvironmentServiceProvider interface {
	GetEnvironmentData(ctx context.Context) models.EnvironmentData
}

// EnvironmentOptions are the static facts reported by EnvironmentService.
type EnvironmentOptions struct {
	Version         string
	SchedulerEngine string
	TimelineSpan    time.Duration
	ReadOnly        bool
	Clustered       bool
}

// EnvironmentService reports version, mode and host information.
type EnvironmentService struct {
	opts     EnvironmentOptions
	hostInfo func(ctx context.Context) (*host.InfoStat, error)
}

// NewEnvironmentService creates a new EnvironmentService.
func NewEnvironmentService(opts EnvironmentOptions) *EnvironmentService {
	return &EnvironmentService{opts: opts, hostInfo: host.InfoWithContext}
}

// GetEnvironmentData never fails; host fields are left empty when the host cannot be inspected.
func (s *EnvironmentService) GetEnvironmentData(ctx context.Context) models.EnvironmentData {
	data := models.EnvironmentData{
		SelfVersion:     s.opts.Version,
		SchedulerEngine: s.opts.SchedulerEngine,
		GoVersion:       runtime.Version(),
		TimelineSpan:    s.opts.TimelineSpan.Milliseconds(),
		IsReadOnly:      s.opts.ReadOnly,
		Clustered:       s.opts.Clustered,
	}

	info, err := s.hostInfo(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Could not read host info")
		return data
	}
	data.Hostname = info.Hostname
	data.Platform = info.Platform + " " + info.PlatformVersion
	data.HostUptime = info.Uptime
	return data
}
