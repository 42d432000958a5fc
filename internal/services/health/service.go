package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// Service reports process and database health.
type Service struct {
	DB  Pinger
	Now func() time.Time
}

// NewService constructs a health service. A nil db reports in-memory storage.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Now: time.Now}
}

// Report is the /health payload.
type Report struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

// Healthy reports whether the status is servable.
func (r Report) Healthy() bool {
	return r.Status == "healthy"
}

// Status pings the database, if any, and returns the report.
func (s *Service) Status(ctx context.Context) Report {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	report := Report{
		Status:    "healthy",
		Timestamp: now().UTC().Format(time.RFC3339),
		Database:  "memory",
	}
	if s.DB == nil {
		return report
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		report.Status = "degraded"
		report.Database = "unavailable"
		return report
	}
	report.Database = "ok"
	return report
}
