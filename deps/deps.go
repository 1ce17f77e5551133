// Package deps supplies swappable side-effecting primitives to reducers
// without global mutable state or singletons. A Dependencies value is
// immutable: "modification" always produces a copy with one field replaced,
// so call sites holding the old value are unaffected, and values can be
// shared across goroutines without synchronization.
package deps

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Dependencies is the bag of service functions injected into every reducer
// invocation. Every field is a plain function value, never a stateful object
// with hidden mutation.
type Dependencies struct {
	// Now returns the current wall-clock time.
	Now func() time.Time

	// NewID returns a fresh identifier.
	NewID func() uuid.UUID

	// Fetch retrieves the body behind a URL. Asynchronous and fallible;
	// only ever called from inside effect operations.
	Fetch func(ctx context.Context, url string) ([]byte, error)
}

// Live constructs the default, real implementations.
func Live() Dependencies {
	client := &http.Client{}
	return Dependencies{
		Now:   time.Now,
		NewID: uuid.New,
		Fetch: func(ctx context.Context, url string) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("deps: fetch %s: unexpected status %s", url, resp.Status)
			}
			return io.ReadAll(resp.Body)
		},
	}
}

// WithNow returns a copy with the clock replaced.
func (d Dependencies) WithNow(now func() time.Time) Dependencies {
	d.Now = now
	return d
}

// WithNewID returns a copy with the id source replaced.
func (d Dependencies) WithNewID(newID func() uuid.UUID) Dependencies {
	d.NewID = newID
	return d
}

// WithFetch returns a copy with the fetcher replaced.
func (d Dependencies) WithFetch(fetch func(ctx context.Context, url string) ([]byte, error)) Dependencies {
	d.Fetch = fetch
	return d
}

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// SequentialIDs returns an id source yielding a deterministic sequence:
// 00000000-0000-4000-8000-000000000001, ...02, and so on. Safe for
// concurrent use.
func SequentialIDs() func() uuid.UUID {
	var counter uint64
	return func() uuid.UUID {
		n := atomic.AddUint64(&counter, 1)
		var id uuid.UUID
		binary.BigEndian.PutUint64(id[8:], n)
		id[6] = 0x40 // version 4
		id[8] = (id[8] & 0x3f) | 0x80
		return id
	}
}

// CannedFetch returns a fetcher that ignores the URL and yields a fixed
// response.
func CannedFetch(body []byte, err error) func(ctx context.Context, url string) ([]byte, error) {
	return func(ctx context.Context, url string) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	}
}

// Deterministic is the preset used by tests: a clock frozen at the Unix
// epoch, sequential ids, and an empty canned fetch response.
func Deterministic() Dependencies {
	return Dependencies{
		Now:   FixedClock(time.Unix(0, 0).UTC()),
		NewID: SequentialIDs(),
		Fetch: CannedFetch(nil, nil),
	}
}
