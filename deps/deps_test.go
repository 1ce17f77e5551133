package deps_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronstorm/tca-kit/deps"
)

func TestWith_CopiesWithoutMutatingOriginal(t *testing.T) {
	base := deps.Deterministic()
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	updated := base.WithNow(deps.FixedClock(frozen))

	assert.Equal(t, frozen, updated.Now())
	assert.Equal(t, time.Unix(0, 0).UTC(), base.Now(), "original value must be unaffected")
}

func TestWithFetch_ReplacesOnlyFetch(t *testing.T) {
	base := deps.Deterministic()
	updated := base.WithFetch(deps.CannedFetch([]byte("hello"), nil))

	body, err := updated.Fetch(context.Background(), "ignored://url")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)

	// clock and ids untouched
	assert.Equal(t, base.Now(), updated.Now())
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := deps.FixedClock(at)
	assert.Equal(t, at, clock())
	assert.Equal(t, at, clock())
}

func TestSequentialIDs_DeterministicAndDistinct(t *testing.T) {
	ids := deps.SequentialIDs()
	first := ids()
	second := ids()
	assert.NotEqual(t, first, second)
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", first.String())
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", second.String())

	// a fresh source restarts the sequence
	assert.Equal(t, first, deps.SequentialIDs()())
}

func TestSequentialIDs_ConcurrentUse(t *testing.T) {
	ids := deps.SequentialIDs()
	const n = 100
	seen := sync.Map{}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, dup := seen.LoadOrStore(ids(), true); dup {
				t.Error("duplicate id")
			}
		}()
	}
	wg.Wait()
}

func TestCannedFetch_Error(t *testing.T) {
	boom := errors.New("boom")
	fetch := deps.CannedFetch(nil, boom)
	_, err := fetch(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestCannedFetch_CopiesBody(t *testing.T) {
	fetch := deps.CannedFetch([]byte("abc"), nil)
	first, err := fetch(context.Background(), "x")
	require.NoError(t, err)
	first[0] = 'z'

	second, _ := fetch(context.Background(), "x")
	assert.Equal(t, []byte("abc"), second)
}

func TestLive_HasAllFields(t *testing.T) {
	d := deps.Live()
	require.NotNil(t, d.Now)
	require.NotNil(t, d.NewID)
	require.NotNil(t, d.Fetch)
	assert.WithinDuration(t, time.Now(), d.Now(), time.Second)
	assert.NotEqual(t, d.NewID(), d.NewID())
}
