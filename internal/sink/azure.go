package sink

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Compile-time check: AzureSink implements Sink.
var _ Sink = (*AzureSink)(nil)

// AzureSink uploads to Azure Blob Storage. With an account key it signs
// requests with a shared-key credential; without one the endpoint URL must
// carry a SAS token.
type AzureSink struct {
	accountName string
	accountKey  string
}

// NewAzure creates an AzureSink. accountName may be empty, in which case it
// is derived from each target endpoint.
func NewAzure(accountName, accountKey string) *AzureSink {
	return &AzureSink{accountName: accountName, accountKey: accountKey}
}

// Put creates the container if needed and uploads data as a block blob.
func (s *AzureSink) Put(ctx context.Context, target Target, data []byte, contentType string) error {
	if err := target.Validate(); err != nil {
		return err
	}

	client, err := s.client(target.Endpoint)
	if err != nil {
		return &Error{Provider: ProviderAzure, Op: "connect", Target: target, Err: err}
	}

	if _, err := client.CreateContainer(ctx, target.Container, nil); err != nil &&
		!bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return &Error{Provider: ProviderAzure, Op: "create container", Target: target, Err: err}
	}

	_, err = client.UploadBuffer(ctx, target.Container, target.Object, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return &Error{Provider: ProviderAzure, Op: "upload", Target: target, Err: err}
	}
	return nil
}

func (s *AzureSink) client(endpoint string) (*azblob.Client, error) {
	if s.accountKey == "" {
		client, err := azblob.NewClientWithNoCredential(endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create Azure blob client: %w", err)
		}
		return client, nil
	}

	name := s.accountName
	if name == "" {
		var err error
		if name, err = accountFromEndpoint(endpoint); err != nil {
			return nil, err
		}
	}

	cred, err := azblob.NewSharedKeyCredential(name, s.accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return client, nil
}

// accountFromEndpoint extracts the storage account name.
//
// Supported formats:
//
//	https://account.blob.core.windows.net
//	http://127.0.0.1:10000/account   (emulator, path-style)
func accountFromEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse Azure endpoint %q: %w", endpoint, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("Azure endpoint %q has no host", endpoint)
	}

	if host == "localhost" || net.ParseIP(host) != nil {
		account, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if account == "" {
			return "", fmt.Errorf("Azure endpoint %q has no account in its path", endpoint)
		}
		return account, nil
	}

	account, _, _ := strings.Cut(host, ".")
	return account, nil
}
