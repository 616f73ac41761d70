package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pendingCall is a page request held open until the test replies.
type pendingCall struct {
	ctx    context.Context
	filter domain.Filter
	page   int
	reply  chan fetchResult
}

type fetchResult struct {
	products []domain.Product
	err      error
}

// blockingFetcher hands every request to the test and ignores cancellation,
// so late responses can be delivered on purpose.
type blockingFetcher struct {
	calls chan *pendingCall
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{calls: make(chan *pendingCall, 64)}
}

func (f *blockingFetcher) FetchPage(ctx context.Context, filter domain.Filter, page, _ int) ([]domain.Product, error) {
	call := &pendingCall{ctx: ctx, filter: filter, page: page, reply: make(chan fetchResult, 1)}
	f.calls <- call
	r := <-call.reply
	return r.products, r.err
}

func (f *blockingFetcher) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a page fetch")
		return nil
	}
}

func (f *blockingFetcher) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case call := <-f.calls:
		t.Fatalf("unexpected fetch of page %d for %s", call.page, call.filter)
	case <-time.After(20 * time.Millisecond):
	}
}

func (c *pendingCall) respond(products []domain.Product, err error) {
	c.reply <- fetchResult{products: products, err: err}
}

func settled(c *Controller, generation uint64) func() bool {
	return func() bool {
		s := c.Snapshot()
		return s.Generation == generation && !s.InFlight
	}
}

func TestController_EndToEndSummerScenario(t *testing.T) {
	fetcher := new(mocks.MockPageFetcher)
	filter := domain.Filter{Category: "SUMMER"}
	fetcher.On("FetchPage", mock.Anything, filter, 0, 10).Return(makeProducts("p0", 10), nil).Once()
	fetcher.On("FetchPage", mock.Anything, filter, 1, 10).Return(makeProducts("p1", 4), nil).Once()

	ctrl := NewController(fetcher, WithPageSize(10))
	ctx := context.Background()

	ctrl.Initialize(ctx, filter)
	ctrl.Wait()
	snap := ctrl.Snapshot()
	require.Len(t, snap.Items, 10)
	require.False(t, snap.Exhausted)

	require.True(t, ctrl.OnScrollNearBottom(ctx))
	ctrl.Wait()

	snap = ctrl.Snapshot()
	assert.True(t, snap.Exhausted)
	assert.Len(t, snap.Items, 14)
	assert.Equal(t, 1, snap.Cursor)
	assert.Equal(t, "p0-0", snap.Items[0].ID)
	assert.Equal(t, "p1-3", snap.Items[13].ID)

	for range 5 {
		assert.False(t, ctrl.OnScrollNearBottom(ctx))
	}
	ctrl.Wait()
	assert.Len(t, ctrl.Snapshot().Items, 14)
	fetcher.AssertExpectations(t)
}

func TestController_NoDuplicateConcurrentFetches(t *testing.T) {
	fetcher := newBlockingFetcher()
	ctrl := NewController(fetcher)
	ctx := context.Background()

	ctrl.Initialize(ctx, summer)
	first := fetcher.next(t)

	var issued atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctrl.OnScrollNearBottom(ctx) {
				issued.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, issued.Load())
	fetcher.assertNoCall(t)

	first.respond(makeProducts("p", 10), nil)
	ctrl.Wait()

	for range 20 {
		if ctrl.OnScrollNearBottom(ctx) {
			issued.Add(1)
		}
	}
	assert.Equal(t, int32(1), issued.Load(), "one fetch per idle period")

	second := fetcher.next(t)
	assert.Equal(t, 1, second.page)
	fetcher.assertNoCall(t)

	second.respond(makeProducts("q", 10), nil)
	ctrl.Wait()
	assert.Len(t, ctrl.Snapshot().Items, 20)
}

func TestController_InitializeAlwaysResets(t *testing.T) {
	fetcher := newBlockingFetcher()
	ctrl := NewController(fetcher)
	ctx := context.Background()

	ctrl.Initialize(ctx, summer)
	fetcher.next(t).respond(makeProducts("s", 3), nil)
	ctrl.Wait()
	require.True(t, ctrl.Snapshot().Exhausted)

	ctrl.Initialize(ctx, winter)
	snap := ctrl.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Equal(t, 0, snap.Cursor)
	assert.False(t, snap.Exhausted)
	assert.True(t, snap.InFlight)

	call := fetcher.next(t)
	assert.Equal(t, winter, call.filter)
	assert.Equal(t, 0, call.page)
	fetcher.assertNoCall(t)

	call.respond(makeProducts("w", 10), nil)
	ctrl.Wait()
}

func TestController_StaleResponseDiscarded(t *testing.T) {
	fetcher := newBlockingFetcher()
	ctrl := NewController(fetcher)
	ctx := context.Background()

	ctrl.Initialize(ctx, summer)
	fetcher.next(t).respond(makeProducts("a0", 10), nil)
	ctrl.Wait()
	require.True(t, ctrl.OnScrollNearBottom(ctx))
	fetcher.next(t).respond(makeProducts("a1", 10), nil)
	ctrl.Wait()
	require.True(t, ctrl.OnScrollNearBottom(ctx))
	stale := fetcher.next(t)
	require.Equal(t, 2, stale.page)

	ctrl.Initialize(ctx, winter)
	assert.ErrorIs(t, stale.ctx.Err(), context.Canceled, "filter change cancels the old request")

	fresh := fetcher.next(t)
	fresh.respond(makeProducts("b", 3), nil)
	require.Eventually(t, settled(ctrl, 2), time.Second, time.Millisecond)

	stale.respond(makeProducts("a2", 10), nil)
	ctrl.Wait()

	snap := ctrl.Snapshot()
	assert.Len(t, snap.Items, 3)
	assert.Equal(t, "b-0", snap.Items[0].ID)
	assert.Equal(t, winter, snap.Filter)
	assert.True(t, snap.Exhausted)
}

func TestController_StaleResponseBeforeFreshOne(t *testing.T) {
	fetcher := newBlockingFetcher()
	ctrl := NewController(fetcher)
	ctx := context.Background()

	ctrl.Initialize(ctx, summer)
	stale := fetcher.next(t)
	ctrl.Initialize(ctx, winter)
	fresh := fetcher.next(t)

	stale.respond(makeProducts("a", 10), nil)
	fresh.respond(makeProducts("b", 10), nil)
	ctrl.Wait()
	snap := ctrl.Snapshot()
	assert.Len(t, snap.Items, 10)
	assert.Equal(t, "b-0", snap.Items[0].ID)
}

func TestController_FailureSurfacesAndAllowsRescroll(t *testing.T) {
	fetcher := new(mocks.MockPageFetcher)
	backendErr := errors.New("502 bad gateway")
	fetcher.On("FetchPage", mock.Anything, summer, 0, 10).Return(makeProducts("p", 10), nil).Once()
	fetcher.On("FetchPage", mock.Anything, summer, 1, 10).Return(nil, backendErr).Once()
	fetcher.On("FetchPage", mock.Anything, summer, 1, 10).Return(makeProducts("q", 10), nil).Once()

	var mu sync.Mutex
	var errorsSeen []error
	ctrl := NewController(fetcher, WithListener(func(s Snapshot) {
		if s.Err != nil {
			mu.Lock()
			errorsSeen = append(errorsSeen, s.Err)
			mu.Unlock()
		}
	}))
	ctx := context.Background()

	ctrl.Initialize(ctx, summer)
	ctrl.Wait()
	require.True(t, ctrl.OnScrollNearBottom(ctx))
	ctrl.Wait()

	snap := ctrl.Snapshot()
	assert.Len(t, snap.Items, 10)
	assert.False(t, snap.InFlight)
	assert.False(t, snap.Exhausted)
	assert.Equal(t, 1, snap.Cursor, "cursor still names the failed page")
	var fetchErr *domain.FetchError
	require.ErrorAs(t, snap.Err, &fetchErr)
	assert.Equal(t, 1, fetchErr.Page)
	assert.ErrorIs(t, snap.Err, backendErr)
	assert.NotEmpty(t, snap.Error)

	mu.Lock()
	assert.Len(t, errorsSeen, 1)
	mu.Unlock()

	require.True(t, ctrl.OnScrollNearBottom(ctx))
	ctrl.Wait()
	snap = ctrl.Snapshot()
	assert.Len(t, snap.Items, 20)
	assert.NoError(t, snap.Err)
	fetcher.AssertExpectations(t)
}

func TestController_RetryReplaces(t *testing.T) {
	fetcher := new(mocks.MockPageFetcher)
	fetcher.On("FetchPage", mock.Anything, summer, 0, 10).Return(makeProducts("p", 10), nil).Twice()
	fetcher.On("FetchPage", mock.Anything, summer, 1, 10).Return(makeProducts("q", 10), nil).Once()

	ctrl := NewController(fetcher)
	ctx := context.Background()

	assert.False(t, ctrl.Retry(ctx), "nothing to retry before initialize")

	ctrl.Initialize(ctx, summer)
	ctrl.Wait()
	require.True(t, ctrl.OnScrollNearBottom(ctx))
	ctrl.Wait()
	require.Len(t, ctrl.Snapshot().Items, 20)

	require.True(t, ctrl.Retry(ctx))
	ctrl.Wait()

	snap := ctrl.Snapshot()
	assert.Len(t, snap.Items, 10)
	assert.Equal(t, uint64(2), snap.Generation)
	fetcher.AssertExpectations(t)
}

func TestController_PanickingFetcherDoesNotStall(t *testing.T) {
	calls := 0
	fetcher := domain.PageFetcherFunc(func(ctx context.Context, f domain.Filter, page, size int) ([]domain.Product, error) {
		calls++
		if calls == 1 {
			panic("decoder bug")
		}
		return makeProducts("ok", size), nil
	})

	ctrl := NewController(fetcher)
	ctx := context.Background()
	ctrl.Initialize(ctx, summer)
	ctrl.Wait()

	snap := ctrl.Snapshot()
	assert.False(t, snap.InFlight)
	require.Error(t, snap.Err)
	assert.Contains(t, snap.Err.Error(), "panicked")

	require.True(t, ctrl.OnScrollNearBottom(ctx))
	ctrl.Wait()
	assert.Len(t, ctrl.Snapshot().Items, 10)
}

func TestController_FetchTimeout(t *testing.T) {
	fetcher := domain.PageFetcherFunc(func(ctx context.Context, _ domain.Filter, _, _ int) ([]domain.Product, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctrl := NewController(fetcher, WithFetchTimeout(10*time.Millisecond))
	ctrl.Initialize(context.Background(), summer)
	ctrl.Wait()

	snap := ctrl.Snapshot()
	assert.False(t, snap.InFlight)
	assert.ErrorIs(t, snap.Err, context.DeadlineExceeded)
}

func TestController_CallerCancellationDoesNotAbortFetch(t *testing.T) {
	fetcher := newBlockingFetcher()
	ctrl := NewController(fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	ctrl.Initialize(ctx, summer)
	cancel()

	call := fetcher.next(t)
	assert.NoError(t, call.ctx.Err(), "a finished HTTP request must not cancel the feed fetch")
	call.respond(makeProducts("p", 10), nil)
	ctrl.Wait()
	assert.Len(t, ctrl.Snapshot().Items, 10)
}

func TestController_CloseDiscardsLateResults(t *testing.T) {
	fetcher := newBlockingFetcher()
	ctrl := NewController(fetcher)
	ctx := context.Background()

	ctrl.Initialize(ctx, summer)
	call := fetcher.next(t)
	ctrl.Close()
	assert.ErrorIs(t, call.ctx.Err(), context.Canceled)

	call.respond(makeProducts("p", 10), nil)
	ctrl.Wait()

	assert.Empty(t, ctrl.Snapshot().Items)
	assert.False(t, ctrl.OnScrollNearBottom(ctx))
	ctrl.Initialize(ctx, winter)
	fetcher.assertNoCall(t)
}

func TestController_OnScrollUsesMargin(t *testing.T) {
	fetcher := newBlockingFetcher()
	ctrl := NewController(fetcher, WithScrollMargin(100))
	ctx := context.Background()

	ctrl.Initialize(ctx, summer)
	fetcher.next(t).respond(makeProducts("p", 10), nil)
	ctrl.Wait()

	far := Viewport{ScrollHeight: 3000, InnerHeight: 800, ScrollY: 1000}
	assert.False(t, ctrl.OnScroll(ctx, far))
	fetcher.assertNoCall(t)

	near := Viewport{ScrollHeight: 3000, InnerHeight: 800, ScrollY: 2150}
	assert.True(t, ctrl.OnScroll(ctx, near))
	call := fetcher.next(t)
	assert.Equal(t, 1, call.page)
	call.respond(nil, nil)
	ctrl.Wait()
	assert.True(t, ctrl.Snapshot().Exhausted)
}

func TestController_PageHook(t *testing.T) {
	fetcher := new(mocks.MockPageFetcher)
	fetcher.On("FetchPage", mock.Anything, summer, 0, 5).Return(makeProducts("p", 5), nil).Once()
	fetcher.On("FetchPage", mock.Anything, summer, 1, 5).Return([]domain.Product{}, nil).Once()

	var pages []Page
	ctrl := NewController(fetcher, WithPageSize(5), WithPageHook(func(_ context.Context, p Page) {
		pages = append(pages, p)
	}))
	ctx := context.Background()

	ctrl.Initialize(ctx, summer)
	ctrl.Wait()
	require.True(t, ctrl.OnScrollNearBottom(ctx))
	ctrl.Wait()

	require.Len(t, pages, 1, "empty pages are not reported")
	assert.Equal(t, 0, pages[0].Ticket.Page)
	assert.Equal(t, summer, pages[0].Ticket.Filter)
	assert.Len(t, pages[0].Products, 5)
	assert.True(t, ctrl.Snapshot().Exhausted)
}

func TestController_ScrollBeforeInitialize(t *testing.T) {
	fetcher := newBlockingFetcher()
	ctrl := NewController(fetcher)

	assert.False(t, ctrl.OnScrollNearBottom(context.Background()))
	fetcher.assertNoCall(t)
}

func TestController_ListenerSeesTransitionsInOrder(t *testing.T) {
	fetcher := new(mocks.MockPageFetcher)
	fetcher.On("FetchPage", mock.Anything, mock.Anything, mock.Anything, 10).Return(makeProducts("p", 10), nil)

	var mu sync.Mutex
	var versions []uint64
	ctrl := NewController(fetcher, WithListener(func(s Snapshot) {
		mu.Lock()
		versions = append(versions, s.version)
		mu.Unlock()
	}))
	ctx := context.Background()
	ctrl.Initialize(ctx, summer)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 25 {
				if (i+j)%5 == 0 {
					ctrl.Initialize(ctx, winter)
				} else {
					ctrl.OnScrollNearBottom(ctx)
				}
			}
		}()
	}
	wg.Wait()
	ctrl.Close()
	ctrl.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, versions)
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1], "snapshot %d delivered out of order", i)
	}
}
