package sink

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Compile-time check: GCSSink implements Sink.
var _ Sink = (*GCSSink)(nil)

// GCSSink uploads to Google Cloud Storage.
type GCSSink struct {
	projectID       string
	credentialsFile string
}

// NewGCS creates a GCSSink. Buckets that do not exist are created in
// projectID. An empty credentialsFile uses application default credentials.
func NewGCS(projectID, credentialsFile string) *GCSSink {
	return &GCSSink{projectID: projectID, credentialsFile: credentialsFile}
}

// Put creates the bucket if needed and writes the object.
func (s *GCSSink) Put(ctx context.Context, target Target, data []byte, contentType string) error {
	if err := target.Validate(); err != nil {
		return err
	}

	client, err := storage.NewClient(ctx, s.clientOptions(target.Endpoint)...)
	if err != nil {
		return &Error{Provider: ProviderGCS, Op: "connect", Target: target, Err: fmt.Errorf("create GCS client: %w", err)}
	}
	defer client.Close()

	bucket := client.Bucket(target.Container)
	if _, err := bucket.Attrs(ctx); err != nil {
		if !errors.Is(err, storage.ErrBucketNotExist) {
			return &Error{Provider: ProviderGCS, Op: "get bucket", Target: target, Err: err}
		}
		if s.projectID == "" {
			return &Error{Provider: ProviderGCS, Op: "create bucket", Target: target, Err: errors.New("GCS_PROJECT_ID is required to create buckets")}
		}
		if err := bucket.Create(ctx, s.projectID, nil); err != nil {
			return &Error{Provider: ProviderGCS, Op: "create bucket", Target: target, Err: err}
		}
	}

	w := bucket.Object(target.Object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return &Error{Provider: ProviderGCS, Op: "write object", Target: target, Err: err}
	}
	if err := w.Close(); err != nil {
		return &Error{Provider: ProviderGCS, Op: "write object", Target: target, Err: err}
	}
	return nil
}

func (s *GCSSink) clientOptions(endpoint string) []option.ClientOption {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if s.credentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, s.credentialsFile))
	}
	return opts
}
