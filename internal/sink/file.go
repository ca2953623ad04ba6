package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Compile-time check: FileSink implements Sink.
var _ Sink = (*FileSink)(nil)

// FileSink writes objects to the local filesystem as root/container/object.
// It is meant for development and for the CLI. The target endpoint must
// still be present but does not take part in addressing.
type FileSink struct {
	root string
}

// NewFile creates a FileSink rooted at root.
func NewFile(root string) *FileSink {
	return &FileSink{root: root}
}

// Put writes data through a temporary file that is renamed into place, so a
// reader never sees a partial object.
func (s *FileSink) Put(ctx context.Context, target Target, data []byte, _ string) error {
	if err := target.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &Error{Provider: ProviderFile, Op: "write", Target: target, Err: err}
	}

	object := filepath.FromSlash(target.Object)
	rel := filepath.Join(target.Container, object)
	if !filepath.IsLocal(target.Container) || !filepath.IsLocal(object) {
		return &Error{Provider: ProviderFile, Op: "resolve path", Target: target, Err: fmt.Errorf("path %q escapes the sink root", rel)}
	}
	path := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Error{Provider: ProviderFile, Op: "create container", Target: target, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return &Error{Provider: ProviderFile, Op: "write", Target: target, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &Error{Provider: ProviderFile, Op: "write", Target: target, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Provider: ProviderFile, Op: "write", Target: target, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &Error{Provider: ProviderFile, Op: "write", Target: target, Err: err}
	}
	return nil
}
