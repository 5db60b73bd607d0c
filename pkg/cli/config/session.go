package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Session holds CLI flags for live session and reclamation timings
type Session struct {
	heartbeatInterval time.Duration
	sessionTimeout    time.Duration
	reclaimInterval   time.Duration
	reclaimThreshold  time.Duration
}

// Flags returns CLI flags for session timing configuration
func (s *Session) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "heartbeat-interval",
			Usage:       "Expected client heartbeat interval; also the liveness sweep period",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("VERIFLOW_HEARTBEAT_INTERVAL"),
			Destination: &s.heartbeatInterval,
		},
		&cli.DurationFlag{
			Name:        "session-timeout",
			Usage:       "Disconnect sessions with no heartbeat for this long",
			Value:       2 * time.Minute,
			Sources:     cli.EnvVars("VERIFLOW_SESSION_TIMEOUT"),
			Destination: &s.sessionTimeout,
		},
		&cli.DurationFlag{
			Name:        "reclaim-interval",
			Usage:       "How often the orphan reclaimer sweeps stale executions",
			Value:       time.Minute,
			Sources:     cli.EnvVars("VERIFLOW_RECLAIM_INTERVAL"),
			Destination: &s.reclaimInterval,
		},
		&cli.DurationFlag{
			Name:        "reclaim-threshold",
			Usage:       "Reclaim in-progress executions older than this with no live session",
			Value:       2 * time.Minute,
			Sources:     cli.EnvVars("VERIFLOW_RECLAIM_THRESHOLD"),
			Destination: &s.reclaimThreshold,
		},
	}
}

// Validate checks the timing relations
func (s *Session) Validate() error {
	if s.heartbeatInterval <= 0 || s.sessionTimeout <= 0 || s.reclaimInterval <= 0 || s.reclaimThreshold <= 0 {
		return goerr.New("session timings must be positive")
	}
	if s.sessionTimeout <= s.heartbeatInterval {
		return goerr.New("session-timeout must be longer than heartbeat-interval",
			goerr.V("heartbeat_interval", s.heartbeatInterval),
			goerr.V("session_timeout", s.sessionTimeout))
	}
	return nil
}

// HeartbeatInterval returns the configured heartbeat interval
func (s *Session) HeartbeatInterval() time.Duration { return s.heartbeatInterval }

// SessionTimeout returns the configured session timeout
func (s *Session) SessionTimeout() time.Duration { return s.sessionTimeout }

// ReclaimInterval returns the configured reclaim sweep interval
func (s *Session) ReclaimInterval() time.Duration { return s.reclaimInterval }

// ReclaimThreshold returns the configured reclaim age threshold
func (s *Session) ReclaimThreshold() time.Duration { return s.reclaimThreshold }
