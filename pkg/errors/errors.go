package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeValidation represents missing or malformed caller input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents an unknown product id
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeFetch represents navigation or settle failures while rendering a page
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents the source site refusing requests
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents a page that rendered but yielded no price
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeDispatch represents notifier failures
	ErrorTypeDispatch ErrorType = "dispatch"
	// ErrorTypeStore represents registry backend failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// AppError is the error carried across the price pipeline
type AppError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(errType ErrorType, component, message string, err error) *AppError {
	return &AppError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *AppError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewNotFound creates a new not-found error
func NewNotFound(component, message string) *AppError {
	return New(ErrorTypeNotFound, component, message, nil)
}

// NewFetch creates a new fetch error
func NewFetch(component, message string, err error) *AppError {
	return New(ErrorTypeFetch, component, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(component string, duration time.Duration) *AppError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, component, message, nil)
}

// NewParsing creates a new parsing error
func NewParsing(component, message string) *AppError {
	return New(ErrorTypeParsing, component, message, nil)
}

// NewDispatch creates a new dispatch error
func NewDispatch(component, message string, err error) *AppError {
	return New(ErrorTypeDispatch, component, message, err)
}

// NewStore creates a new store error
func NewStore(component, message string, err error) *AppError {
	return New(ErrorTypeStore, component, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *AppError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "" if there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's chain contains an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// Message returns the user-facing message of an AppError, or err.Error() otherwise.
func Message(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if appErr.Err != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
		}
		return appErr.Message
	}
	return err.Error()
}
