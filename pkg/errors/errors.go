package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents transport or HTTP status failures
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeParse represents missing markup anchors or malformed values
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeEmptyResults represents a search page that yielded zero rows
	ErrorTypeEmptyResults ErrorType = "empty_results"
	// ErrorTypeValidation represents invalid query or filter input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeError) IsRetryable() bool {
	return e.Type == ErrorTypeFetch
}

// New creates a new ScrapeError
func New(errType ErrorType, component, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(component, message string, err error) *ScrapeError {
	return New(ErrorTypeFetch, component, message, err)
}

// NewParse creates a new parse error
func NewParse(component, message string, err error) *ScrapeError {
	return New(ErrorTypeParse, component, message, err)
}

// NewEmptyResults creates a new empty results error
func NewEmptyResults(component, message string) *ScrapeError {
	return New(ErrorTypeEmptyResults, component, message, nil)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *ScrapeError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewCache creates a new cache error
func NewCache(component, message string, err error) *ScrapeError {
	return New(ErrorTypeCache, component, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, component, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of err, or an empty string for untyped errors
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type
	}
	return ""
}

// IsType reports whether err is a ScrapeError of the given type
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
