package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/source"
)

type fetchCall struct {
	page  int
	limit int
}

// step is one scripted answer. A non-nil gate blocks the fetch until it receives a value.
type step struct {
	n    int
	err  error
	gate chan struct{}
}

// scriptedSource answers fetches from a script; after the script runs out it returns empty pages.
type scriptedSource struct {
	mu     sync.Mutex
	script []step
	calls  []fetchCall
	nextID int
}

func (s *scriptedSource) GetSourceID() string { return "scripted" }

func (s *scriptedSource) FetchPage(ctx context.Context, page, limit int) ([]domain.ImageRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{page: page, limit: limit})
	var st step
	if len(s.script) > 0 {
		st = s.script[0]
		s.script = s.script[1:]
	}
	s.mu.Unlock()

	if st.gate != nil {
		select {
		case <-st.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if st.err != nil {
		return nil, st.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]domain.ImageRecord, st.n)
	for i := range records {
		s.nextID++
		records[i] = domain.ImageRecord{ID: fmt.Sprintf("%d", s.nextID), Author: "author"}
	}
	return records, nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedSource) lastCall() fetchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) FetchObserved(_ string, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestRequestNext_NonEmptyPagesAdvance(t *testing.T) {
	src := &scriptedSource{script: []step{{n: 5}, {n: 5}, {n: 5}, {n: 5}}}
	c := New(src, Options{PageSize: 5})
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		fetched, err := c.RequestNext(ctx)
		require.NoError(t, err)
		assert.True(t, fetched)
		assert.Equal(t, i, src.lastCall().page)
		assert.Equal(t, 5, src.lastCall().limit)

		snap := c.Snapshot()
		assert.Equal(t, i+1, snap.Page)
		assert.True(t, snap.HasMore)
		assert.Equal(t, StateIdle, snap.State)
		assert.Len(t, snap.Items, i*5)
	}
}

func TestRequestNext_EmptyPageExhausts(t *testing.T) {
	src := &scriptedSource{script: []step{{n: 3}, {n: 0}}}
	c := New(src, Options{PageSize: 3})
	ctx := context.Background()

	_, err := c.RequestNext(ctx)
	require.NoError(t, err)
	_, err = c.RequestNext(ctx)
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.False(t, snap.HasMore)
	assert.Equal(t, StateExhausted, snap.State)
	assert.Equal(t, 3, snap.Page)

	for i := 0; i < 3; i++ {
		fetched, err := c.RequestNext(ctx)
		require.NoError(t, err)
		assert.False(t, fetched)
	}
	assert.Equal(t, 2, src.callCount())
}

func TestRequestNext_WhileLoadingIsNoop(t *testing.T) {
	gate := make(chan struct{})
	src := &scriptedSource{script: []step{{n: 2, gate: gate}}}
	c := New(src, Options{PageSize: 2})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.RequestNext(ctx)
	}()

	require.Eventually(t, func() bool { return c.State() == StateLoading }, time.Second, time.Millisecond)

	fetched, err := c.RequestNext(ctx)
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.True(t, c.Snapshot().Loading)

	gate <- struct{}{}
	<-done

	assert.Equal(t, 1, src.callCount())
	assert.False(t, c.Snapshot().Loading)
	assert.Equal(t, 2, c.Len())
}

func TestSetPageSize_NonPositiveFallsBack(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{name: "zero", size: 0, want: DefaultPageSize},
		{name: "negative", size: -7, want: DefaultPageSize},
		{name: "positive", size: 7, want: 7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &scriptedSource{script: []step{{n: 1}}}
			c := New(src, Options{PageSize: 5})

			fetched, err := c.SetPageSize(context.Background(), tc.size)
			require.NoError(t, err)
			assert.True(t, fetched)
			assert.Equal(t, tc.want, c.Snapshot().PageSize)
			assert.Equal(t, tc.want, src.lastCall().limit)
			assert.Equal(t, 1, src.lastCall().page)
		})
	}

	assert.Equal(t, DefaultPageSize, New(&scriptedSource{}, Options{}).Snapshot().PageSize)
}

func TestSetPageSize_TruncatesAndRestarts(t *testing.T) {
	src := &scriptedSource{script: []step{{n: 10}, {n: 10}, {n: 0}}}
	c := New(src, Options{PageSize: 10})
	ctx := context.Background()

	_, err := c.RequestNext(ctx)
	require.NoError(t, err)
	_, err = c.RequestNext(ctx)
	require.NoError(t, err)
	_, err = c.RequestNext(ctx)
	require.NoError(t, err)
	require.Equal(t, StateExhausted, c.State())
	require.Equal(t, 20, c.Len())

	src.mu.Lock()
	src.script = []step{{n: 4}}
	src.mu.Unlock()

	_, err = c.SetPageSize(ctx, 4)
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Equal(t, 2, snap.Page)
	assert.True(t, snap.HasMore)
	assert.Equal(t, 4, snap.PageSize)
	assert.Len(t, snap.Items, 8)
	assert.Equal(t, "1", snap.Items[0].ID)
}

func TestReset_ClearsAndRefetchesFirstPage(t *testing.T) {
	src := &scriptedSource{script: []step{{n: 2}, {n: 0}, {n: 2}}}
	c := New(src, Options{PageSize: 2})
	ctx := context.Background()

	_, _ = c.RequestNext(ctx)
	_, _ = c.RequestNext(ctx)
	require.Equal(t, StateExhausted, c.State())

	fetched, err := c.Reset(ctx)
	require.NoError(t, err)
	assert.True(t, fetched)

	snap := c.Snapshot()
	assert.Equal(t, 1, src.lastCall().page)
	assert.Equal(t, 2, snap.Page)
	assert.True(t, snap.HasMore)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "3", snap.Items[0].ID)
}

func TestCeilingScenario(t *testing.T) {
	obs := &recordingObserver{}
	src := &scriptedSource{script: []step{{n: 20}, {n: 20}, {n: 20}, {n: 0}}}
	c := New(src, Options{PageSize: 20, MaxItems: 40, Observer: obs})
	ctx := context.Background()

	_, err := c.RequestNext(ctx)
	require.NoError(t, err)
	_, err = c.RequestNext(ctx)
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Len(t, snap.Items, 40)
	assert.Equal(t, 3, snap.Page)

	_, err = c.RequestNext(ctx)
	require.NoError(t, err)
	snap = c.Snapshot()
	assert.Len(t, snap.Items, 40)
	assert.Equal(t, 4, snap.Page)
	assert.True(t, snap.HasMore)

	_, err = c.RequestNext(ctx)
	require.NoError(t, err)
	snap = c.Snapshot()
	assert.False(t, snap.HasMore)
	assert.Equal(t, StateExhausted, snap.State)

	assert.Equal(t, []string{OutcomeSuccess, OutcomeSuccess, OutcomeSuccess, OutcomeEmpty}, obs.outcomes)
}

func TestFailureKeepsProgressAndRetriesSamePage(t *testing.T) {
	src := &scriptedSource{script: []step{
		{n: 20},
		{n: 20},
		{err: &source.StatusError{StatusCode: 503}},
		{n: 20},
	}}
	c := New(src, Options{PageSize: 20})
	ctx := context.Background()

	_, _ = c.RequestNext(ctx)
	_, _ = c.RequestNext(ctx)

	fetched, err := c.RequestNext(ctx)
	assert.True(t, fetched)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindStatus, fe.Kind)
	assert.Equal(t, 503, fe.StatusCode)

	snap := c.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, statusMessages[503], snap.Error)
	assert.Equal(t, 3, snap.Page)
	assert.True(t, snap.HasMore)
	assert.Len(t, snap.Items, 40)
	assert.Equal(t, 3, src.lastCall().page)

	fetched, err = c.Retry(ctx)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, 3, src.lastCall().page)

	snap = c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Error)
	assert.Equal(t, 4, snap.Page)
	assert.Len(t, snap.Items, 60)
}

func TestResetDuringFetchDropsStaleResult(t *testing.T) {
	staleGate, freshGate := make(chan struct{}), make(chan struct{})
	src := &scriptedSource{script: []step{{n: 5, gate: staleGate}, {n: 2, gate: freshGate}}}
	obs := &recordingObserver{}
	c := New(src, Options{PageSize: 5, Observer: obs})
	ctx := context.Background()

	staleDone := make(chan error, 1)
	go func() {
		_, err := c.RequestNext(ctx)
		staleDone <- err
	}()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)

	resetDone := make(chan error, 1)
	go func() {
		_, err := c.Reset(ctx)
		resetDone <- err
	}()
	require.Eventually(t, func() bool { return src.callCount() == 2 }, time.Second, time.Millisecond)

	// Release the stale fetch first; its five records must not be applied.
	staleGate <- struct{}{}
	require.NoError(t, <-staleDone)
	assert.Equal(t, 0, c.Len())

	freshGate <- struct{}{}
	require.NoError(t, <-resetDone)

	snap := c.Snapshot()
	assert.Len(t, snap.Items, 2)
	assert.Equal(t, 2, snap.Page)
	assert.Contains(t, obs.outcomes, OutcomeDropped)
}

func TestCancelledFetchIsDropped(t *testing.T) {
	src := &scriptedSource{script: []step{{n: 5, gate: make(chan struct{})}}}
	c := New(src, Options{PageSize: 5})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.RequestNext(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	snap := c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Error)
	assert.Equal(t, 1, snap.Page)
	assert.False(t, snap.Loading)
}

func TestCloseRejectsFurtherCalls(t *testing.T) {
	src := &scriptedSource{script: []step{{n: 1}}}
	c := New(src, Options{})
	c.Close()

	for name, call := range map[string]func() (bool, error){
		"next":     func() (bool, error) { return c.RequestNext(context.Background()) },
		"reset":    func() (bool, error) { return c.Reset(context.Background()) },
		"pageSize": func() (bool, error) { return c.SetPageSize(context.Background(), 3) },
	} {
		t.Run(name, func(t *testing.T) {
			fetched, err := call()
			assert.False(t, fetched)
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
	assert.Equal(t, 0, src.callCount())
}

func TestDedupeSkipsRepeatedIDs(t *testing.T) {
	records := []domain.ImageRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	src := &fixedSource{records: records}
	c := New(src, Options{PageSize: 2, Dedupe: true})
	ctx := context.Background()

	_, err := c.RequestNext(ctx)
	require.NoError(t, err)
	_, err = c.RequestNext(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())

	// Shrinking the page keeps the first record and page 1 repeats it.
	_, err = c.SetPageSize(ctx, 1)
	require.NoError(t, err)
	snap := c.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "a", snap.Items[0].ID)

	_, err = c.RequestNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(c.Snapshot().Items))

	item, ok := c.Find("b")
	assert.True(t, ok)
	assert.Equal(t, "b", item.ID)
	_, ok = c.Find("z")
	assert.False(t, ok)
}

type fixedSource struct {
	records []domain.ImageRecord
}

func (f *fixedSource) GetSourceID() string { return "fixed" }

func (f *fixedSource) FetchPage(_ context.Context, page, limit int) ([]domain.ImageRecord, error) {
	start, end := source.Bounds(page, limit, len(f.records))
	return append([]domain.ImageRecord(nil), f.records[start:end]...), nil
}

func ids(records []domain.ImageRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
