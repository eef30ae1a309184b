package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalGateway serves bare filesystem paths and file:// URLs through the
// Gateway interface. Used for tests and fully on-disk runs.
type LocalGateway struct{}

// NewLocal creates a filesystem gateway.
func NewLocal() *LocalGateway {
	return &LocalGateway{}
}

// Download copies the file at remote to local.
func (g *LocalGateway) Download(ctx context.Context, remote, local string) error {
	return copyFile(localPath(remote), local)
}

// Upload copies the local file to remote, creating parent directories.
func (g *LocalGateway) Upload(ctx context.Context, local, remote string) error {
	dst := localPath(remote)

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	return copyFile(local, dst)
}

// Close is a no-op; there is no client to release.
func (g *LocalGateway) Close() error {
	return nil
}

func localPath(raw string) string {
	return strings.TrimPrefix(raw, "file://")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("failed to open %s: %w: %v", src, ErrObjectNotFound, err)
		}

		if os.IsPermission(err) {
			return fmt.Errorf("failed to open %s: %w: %v", src, ErrPermissionDenied, err)
		}

		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	return out.Close()
}

// ForPath selects a gateway implementation for the given address: gs://
// paths get a GCS gateway with its own client, anything else the local
// filesystem gateway.
func ForPath(ctx context.Context, raw string) (Gateway, error) {
	if !IsRemote(raw) {
		return NewLocal(), nil
	}

	p, err := ParsePath(raw)
	if err != nil {
		return nil, err
	}

	switch p.Scheme {
	case "gs":
		return NewGCS(ctx)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidPath, p.Scheme)
	}
}
