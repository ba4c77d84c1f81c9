package logging

import (
	"context"
	"fmt"
	"log"
	"time"

	"dealerwatch/models"
)

// Sink persists log rows. Both stores implement it.
type Sink interface {
	AddSystemLog(ctx context.Context, entry *models.SystemLog) error
}

// Recorder writes to the process log and mirrors each event into the
// system_logs table so the control surface can page through history.
// Persistence is best effort; a down database never blocks logging.
type Recorder struct {
	sink   Sink
	source string
}

func NewRecorder(sink Sink, source string) *Recorder {
	return &Recorder{sink: sink, source: source}
}

func (r *Recorder) Info(runID, format string, args ...any) {
	r.record(models.LogLevelInfo, runID, format, args...)
}

func (r *Recorder) Warn(runID, format string, args ...any) {
	r.record(models.LogLevelWarn, runID, format, args...)
}

func (r *Recorder) Error(runID, format string, args ...any) {
	r.record(models.LogLevelError, runID, format, args...)
}

func (r *Recorder) record(level models.LogLevel, runID, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", r.source, msg)

	if r.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.sink.AddSystemLog(ctx, &models.SystemLog{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Source:    r.source,
		Message:   msg,
		RunID:     runID,
	})
}
