package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSGateway moves blobs to and from Google Cloud Storage. Construct one
// per invocation and Close it when the run finishes; there is no shared
// module-level client.
type GCSGateway struct {
	client *gcs.Client
}

// NewGCS creates a gateway with its own storage client.
func NewGCS(ctx context.Context, opts ...option.ClientOption) (*GCSGateway, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSGateway{client: client}, nil
}

// NewGCSWithClient wraps an existing client (useful for testing against a
// fake server).
func NewGCSWithClient(client *gcs.Client) *GCSGateway {
	return &GCSGateway{client: client}
}

// Download fetches gs://bucket/key and writes it to the local path.
func (g *GCSGateway) Download(ctx context.Context, remote, local string) error {
	p, err := ParsePath(remote)
	if err != nil {
		return err
	}

	r, err := g.client.Bucket(p.Bucket).Object(p.Key).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", remote, classify(err))
	}
	defer r.Close()

	f, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", local, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to download %s: %w", remote, classify(err))
	}

	return f.Close()
}

// Upload writes the local file to gs://bucket/key. Object stores have no
// directories, so no structure needs creating beyond the key itself.
func (g *GCSGateway) Upload(ctx context.Context, local, remote string) error {
	p, err := ParsePath(remote)
	if err != nil {
		return err
	}

	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", local, err)
	}
	defer f.Close()

	w := g.client.Bucket(p.Bucket).Object(p.Key).NewWriter(ctx)

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload %s: %w", remote, classify(err))
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload %s: %w", remote, classify(err))
	}

	return nil
}

// Close releases the underlying client.
func (g *GCSGateway) Close() error {
	return g.client.Close()
}

// classify maps storage API failures onto the gateway error classes.
func classify(err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}

	return err
}
