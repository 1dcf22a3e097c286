package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyID           = errors.New("document id is empty")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ProviderErrorKind classifies embedding provider failures.
type ProviderErrorKind string

const (
	ProviderNetwork   ProviderErrorKind = "network"
	ProviderAuth      ProviderErrorKind = "auth"
	ProviderQuota     ProviderErrorKind = "quota"
	ProviderServer    ProviderErrorKind = "server"
	ProviderMalformed ProviderErrorKind = "malformed"
	ProviderRejected  ProviderErrorKind = "rejected"
)

// ProviderError reports a failure of the external embedding service.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether retrying the call may succeed.
func (e *ProviderError) Transient() bool {
	switch e.Kind {
	case ProviderNetwork, ProviderQuota, ProviderServer:
		return true
	}
	return false
}

// StorageError reports a vector store failure.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or invalid configuration. It is raised
// before any core operation runs and is never retried.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsProviderError reports whether err wraps a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsStorageError reports whether err wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
