package race

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by BlobReader when nothing is stored at the path.
var ErrObjectNotFound = errors.New("object not found")

// Fetcher retrieves one candidate page. Failures are reported in the Outcome, never as errors.
type Fetcher interface {
	Fetch(ctx context.Context, id CandidateID) Outcome
}

// BlobStore writes run artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// BlobReader reads back previously written artifacts.
type BlobReader interface {
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}

// RunStore persists a finished run with its records.
type RunStore interface {
	SaveRun(ctx context.Context, summary Summary, records []Record) error
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for artifact integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
