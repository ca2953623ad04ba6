// Package sink uploads converted documents to blob storage.
//
// Every provider creates the container (bucket) when it does not exist and
// overwrites an existing object with the same name. Failures are reported as
// *Error values wrapping ErrSinkFailure so callers can map them without
// knowing which provider is configured.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tabjson/internal/config"
)

// Provider names accepted by New.
const (
	ProviderAzure = "azure"
	ProviderS3    = "s3"
	ProviderGCS   = "gcs"
	ProviderFile  = "file"
)

var (
	// ErrSinkFailure marks any failure to store a document.
	ErrSinkFailure = errors.New("sink failure")

	// ErrIncompleteTarget is returned when the endpoint, container or object
	// name is missing. It is also an ErrSinkFailure.
	ErrIncompleteTarget = errors.New("incomplete sink target")
)

// Target addresses one object in blob storage.
type Target struct {
	// Endpoint is the storage service URL, e.g. https://acct.blob.core.windows.net.
	Endpoint string
	// Container is the container (bucket) name.
	Container string
	// Object is the blob (key) name inside the container.
	Object string
}

// String renders the target for logs and error messages.
func (t Target) String() string {
	return fmt.Sprintf("endpoint=%q container=%q object=%q", t.Endpoint, t.Container, t.Object)
}

// Validate reports an *Error wrapping ErrIncompleteTarget when any field is
// blank. The error names all three values.
func (t Target) Validate() error {
	var missing []string
	if strings.TrimSpace(t.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(t.Container) == "" {
		missing = append(missing, "container")
	}
	if strings.TrimSpace(t.Object) == "" {
		missing = append(missing, "object")
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{
		Op:     "validate",
		Target: t,
		Err:    fmt.Errorf("%w: missing %s", ErrIncompleteTarget, strings.Join(missing, ", ")),
	}
}

// Error describes a failed sink operation.
type Error struct {
	Provider string
	Op       string
	Target   Target
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("sink %s (%s): %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("sink %s %s (%s): %v", e.Provider, e.Op, e.Target, e.Err)
}

// Unwrap exposes both ErrSinkFailure and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{ErrSinkFailure, e.Err}
}

// Sink stores a document at a target.
type Sink interface {
	Put(ctx context.Context, target Target, data []byte, contentType string) error
}

// New returns the sink selected by cfg.Provider.
func New(cfg config.SinkConfig) (Sink, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderAzure:
		return NewAzure(cfg.AzureAccountName, cfg.AzureAccountKey), nil
	case ProviderS3:
		return NewS3(cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey), nil
	case ProviderGCS:
		return NewGCS(cfg.GCSProjectID, cfg.GCSCredentialsFile), nil
	case ProviderFile:
		return NewFile(cfg.FileRoot), nil
	default:
		return nil, fmt.Errorf("unknown sink provider %q", cfg.Provider)
	}
}
