// Package storage moves blobs between local disk and remote object stores.
// Remote objects are addressed as scheme://bucket/prefix/object strings;
// object stores have no directories, paths are purely prefix-based.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Gateway error classes. Implementations wrap these so callers can
// classify failures with errors.Is.
var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidPath      = errors.New("invalid object path")
)

// Gateway downloads and uploads named blobs. Implementations must be safe
// for use from a single pipeline run; nothing here is shared across runs.
type Gateway interface {
	// Download fetches the blob at remote and writes it to the local path.
	Download(ctx context.Context, remote, local string) error
	// Upload writes the local file's bytes to the remote destination,
	// creating any prefix structure implicitly.
	Upload(ctx context.Context, local, remote string) error
	// Close releases any underlying client resources.
	Close() error
}

// IsNotFound reports whether err is a not-found class failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// ObjectPath is a parsed scheme://bucket/key address.
type ObjectPath struct {
	Scheme string
	Bucket string
	Key    string
}

// String reassembles the full address.
func (p ObjectPath) String() string {
	return fmt.Sprintf("%s://%s/%s", p.Scheme, p.Bucket, p.Key)
}

// ParsePath splits a scheme://bucket/key address. The key may be empty.
func ParsePath(raw string) (ObjectPath, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return ObjectPath{}, fmt.Errorf("%w: %q", ErrInvalidPath, raw)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return ObjectPath{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidPath, raw)
	}

	return ObjectPath{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// IsRemote reports whether the path addresses an object store rather than
// the local filesystem. Bare paths and file:// URLs are local.
func IsRemote(raw string) bool {
	scheme, _, ok := strings.Cut(raw, "://")
	return ok && scheme != "" && scheme != "file"
}

// Dir returns everything before the final "/" of the path, mirroring
// filepath.Dir for prefix-based addresses.
func Dir(raw string) string {
	i := strings.LastIndex(raw, "/")
	if i < 0 {
		return ""
	}

	return raw[:i]
}

// Base returns the final path segment.
func Base(raw string) string {
	i := strings.LastIndex(raw, "/")
	if i < 0 {
		return raw
	}

	return raw[i+1:]
}

// Join concatenates path segments with "/". The first segment keeps its
// leading slash (or scheme) intact.
func Join(parts ...string) string {
	var out string

	for _, p := range parts {
		if p == "" {
			continue
		}

		if out == "" {
			out = strings.TrimSuffix(p, "/")
			continue
		}

		out = out + "/" + strings.Trim(p, "/")
	}

	return out
}
