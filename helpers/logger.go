package helpers

import (
	"fmt"

	"sjsage522/pricewatch/logger"
)

// LoggerInterface defines the interface for logger implementations
type LoggerInterface interface {
	LogError(component string, err error)
	LogInfo(format string, args ...interface{})
}

// Logger routes LoggerInterface calls to a structured logger
type Logger struct {
	log *logger.Logger
}

// NewLogger creates a new logger instance scoped to component
func NewLogger(component string) *Logger {
	return &Logger{
		log: logger.ForComponent(component),
	}
}

// LogError logs an error tagged with the failing component
func (l *Logger) LogError(component string, err error) {
	l.log.Error().
		Str("source", component).
		Err(err).
		Msg("Operation failed")
}

// LogInfo logs an informational message
func (l *Logger) LogInfo(format string, args ...interface{}) {
	l.log.Info().Msg(fmt.Sprintf(format, args...))
}
