// Package statement opens bank statement exports from local disk or Cloud
// Storage.
package statement

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// Location is a parsed statement source.
type Location struct {
	Bucket string
	Object string
	Path   string
}

// Remote reports whether the statement lives in Cloud Storage.
func (l Location) Remote() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.Remote() {
		return gcsScheme + l.Bucket + "/" + l.Object
	}
	return l.Path
}

// ParseLocation accepts a local path or gs://bucket/object.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, fmt.Errorf("statement location is empty")
	}
	if !strings.HasPrefix(s, gcsScheme) {
		return Location{Path: s}, nil
	}

	bucket, object, ok := strings.Cut(strings.TrimPrefix(s, gcsScheme), "/")
	if !ok || bucket == "" || object == "" {
		return Location{}, fmt.Errorf("invalid cloud storage location %q: want gs://bucket/object", s)
	}
	return Location{Bucket: bucket, Object: object}, nil
}

// Opener reads statements. A nil storage client is created on demand for
// gs:// locations and closed with the returned reader. Local paths must
// resolve inside importDir; an empty importDir disables local statements.
type Opener struct {
	client    *storage.Client
	importDir string
}

func NewOpener(client *storage.Client, importDir string) *Opener {
	return &Opener{client: client, importDir: importDir}
}

func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	if !loc.Remote() {
		return o.openLocal(loc.Path)
	}

	client := o.client
	owned := false
	if client == nil {
		client, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		owned = true
	}

	r, err := client.Bucket(loc.Bucket).Object(loc.Object).NewReader(ctx)
	if err != nil {
		if owned {
			client.Close()
		}
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	if !owned {
		return r, nil
	}
	return &ownedReader{Reader: r, client: client}, nil
}

func (o *Opener) openLocal(path string) (io.ReadCloser, error) {
	if o.importDir == "" {
		return nil, fmt.Errorf("local statements are disabled: no import directory configured")
	}
	root, err := filepath.Abs(o.importDir)
	if err != nil {
		return nil, fmt.Errorf("resolve import directory: %w", err)
	}

	rel := filepath.Clean(path)
	if filepath.IsAbs(rel) {
		if rel, err = filepath.Rel(root, rel); err != nil {
			return nil, fmt.Errorf("statement %q is outside the import directory", path)
		}
	}
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("statement %q is outside the import directory", path)
	}

	// OpenInRoot also refuses symlinks that leave the directory.
	f, err := os.OpenInRoot(root, rel)
	if err != nil {
		return nil, fmt.Errorf("open statement %q: %w", path, err)
	}
	return f, nil
}

type ownedReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *ownedReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}
