package models

import "time"

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type SystemLog struct {
	ID        int64     `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Source    string    `json:"source" db:"source"` // scraper, monitor, control
	Message   string    `json:"message" db:"message"`
	RunID     string    `json:"run_id" db:"run_id"`
}
