package health

import (
	"context"
	"errors"
	"time"

	"energy-advisor/internal/llm"
)

const (
	StatusConnected    = "connected"
	StatusError        = "error"
	StatusDisconnected = "disconnected"
	StatusMemory       = "memory"
	StatusUnknown      = "unknown"

	defaultTimeout = 5 * time.Second
)

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// Report is the health payload.
type Report struct {
	Status   string `json:"status"`
	App      string `json:"app"`
	Database string `json:"database"`
	Backend  string `json:"backend"`
}

// Service encapsulates health-related checks.
type Service struct {
	AppName string
	DB      DBPinger
	Backend llm.Pinger
	Timeout time.Duration
}

// NewService constructs a new health service. db and backend may be nil.
func NewService(appName string, db DBPinger, backend llm.Pinger) *Service {
	return &Service{AppName: appName, DB: db, Backend: backend, Timeout: defaultTimeout}
}

// Status pings the database and the generation backend. The service itself
// is always reported healthy; dependency state is reported per field.
func (s *Service) Status(ctx context.Context) Report {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return Report{
		Status:   "healthy",
		App:      s.AppName,
		Database: s.databaseStatus(ctx),
		Backend:  s.backendStatus(ctx),
	}
}

func (s *Service) databaseStatus(ctx context.Context) string {
	if s.DB == nil {
		return StatusMemory
	}
	if err := s.DB.PingContext(ctx); err != nil {
		return StatusError
	}
	return StatusConnected
}

func (s *Service) backendStatus(ctx context.Context) string {
	if s.Backend == nil {
		return StatusUnknown
	}
	err := s.Backend.Ping(ctx)
	if err == nil {
		return StatusConnected
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return StatusError
	}
	return StatusDisconnected
}
