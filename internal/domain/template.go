package domain

import "time"

// StreamTemplate is a reusable rate/duration preset for new streams.
type StreamTemplate struct {
	ID          int64
	Name        string
	Description string
	Duration    time.Duration
	Rate        int64
	Creator     Principal
	UsageCount  int64
	CreatedAt   time.Time
}

// TotalFor returns the lock a stream created from t needs, or 0 for
// continuous templates.
func (t StreamTemplate) TotalFor() int64 {
	return int64(t.Duration/time.Second) * t.Rate
}
