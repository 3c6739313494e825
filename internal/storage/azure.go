package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"icescan/internal/domain"
)

// Compile-time checks: Azure implements FileIO and Lister.
var _ domain.FileIO = (*Azure)(nil)
var _ domain.Lister = (*Azure)(nil)

// AzureConfig holds shared-key credentials for one storage account.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	// ServiceURL overrides https://<account>.blob.core.windows.net, e.g. for
	// Azurite.
	ServiceURL string
}

// Azure reads table files from Azure Blob Storage (abfss://, az://, https://).
type Azure struct {
	client *azblob.Client
}

// NewAzure creates an Azure FileIO using account-key authentication.
func NewAzure(cfg AzureConfig) (*Azure, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &Azure{client: client}, nil
}

// ReadFull downloads the blob at location.
func (a *Azure) ReadFull(ctx context.Context, location string) ([]byte, error) {
	container, key, err := parseAzurePath(location)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, fmt.Errorf("%s: %w", location, domain.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("download blob %q: %w", location, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob %q: %w", location, err)
	}
	return data, nil
}

// Exists reports whether the blob at location exists.
func (a *Azure) Exists(ctx context.Context, location string) (bool, error) {
	container, key, err := parseAzurePath(location)
	if err != nil {
		return false, err
	}
	blobClient := a.client.ServiceClient().NewContainerClient(container).NewBlobClient(key)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get blob properties %q: %w", location, err)
	}
	return true, nil
}

// List returns the locations of all blobs under prefix.
func (a *Azure) List(ctx context.Context, prefix string) ([]string, error) {
	container, keyPrefix, err := parseAzurePath(prefix)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(prefix, keyPrefix)

	var out []string
	pager := a.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &keyPrefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list blobs under %q: %w", prefix, err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				out = append(out, base+*item.Name)
			}
		}
	}
	return out, nil
}

func isAzureNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound)
}

// parseAzurePath extracts container and key from an Azure storage URI.
//
// Supported formats:
//
//	abfss://container@account.dfs.core.windows.net/path/to/file
//	az://container/path/to/file
//	https://account.blob.core.windows.net/container/path/to/file
func parseAzurePath(path string) (container, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("parse Azure path %q: %w", path, err)
	}

	switch u.Scheme {
	case "abfss", "abfs":
		// Go's url.Parse treats "container" as userinfo (before @) and
		// "account.dfs.core.windows.net" as host.
		if u.User == nil {
			return "", "", fmt.Errorf("abfss path %q missing container@account component", path)
		}
		container = u.User.Username()
		key = strings.TrimPrefix(u.Path, "/")

	case "az", "azure":
		container = u.Host
		key = strings.TrimPrefix(u.Path, "/")

	case "https":
		if !strings.Contains(u.Host, ".blob.core.windows.net") {
			return "", "", fmt.Errorf("unrecognized Azure HTTPS host %q in path %q", u.Host, path)
		}
		trimmed := strings.TrimPrefix(u.Path, "/")
		parts := strings.SplitN(trimmed, "/", 2)
		container = parts[0]
		if len(parts) > 1 {
			key = parts[1]
		}

	default:
		return "", "", fmt.Errorf("unrecognized Azure path scheme %q in %q", u.Scheme, path)
	}

	if container == "" {
		return "", "", fmt.Errorf("empty container in Azure path %q", path)
	}
	if key == "" {
		return container, "", fmt.Errorf("empty key in Azure path %q", path)
	}
	return container, key, nil
}
