package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricewatch/internal/fetcher"
	"sjsage522/pricewatch/internal/notifier"
	"sjsage522/pricewatch/internal/registry"
	apperrors "sjsage522/pricewatch/pkg/errors"
)

// MockFetcher serves scripted observations per url
type MockFetcher struct {
	mu     sync.Mutex
	prices map[string]float64
	titles map[string]string
	errs   map[string]error
	calls  []string
	onCall func(url string)
}

var _ PageFetcher = (*MockFetcher)(nil)

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		prices: make(map[string]float64),
		titles: make(map[string]string),
		errs:   make(map[string]error),
	}
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*fetcher.Observation, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	onCall := m.onCall
	err := m.errs[url]
	price := m.prices[url]
	title, found := m.titles[url]
	m.mu.Unlock()

	if onCall != nil {
		onCall(url)
	}
	if err != nil {
		return nil, err
	}
	if !found {
		title = m.Placeholder()
	}
	return &fetcher.Observation{Price: price, Title: title, TitleFound: found}, nil
}

func (m *MockFetcher) Placeholder() string { return "Amazon Product" }

func (m *MockFetcher) set(url string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[url] = price
	delete(m.errs, url)
}

func (m *MockFetcher) fail(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[url] = err
}

// MockNotifier records alerts
type MockNotifier struct {
	mu     sync.Mutex
	alerts []notifier.Alert
	err    error
}

var _ notifier.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, alert notifier.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return m.err
}

// MockPacer counts waits without sleeping
type MockPacer struct {
	mu    sync.Mutex
	waits int
	err   error
}

func (p *MockPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits++
	if p.err != nil {
		return p.err
	}
	return ctx.Err()
}

type fixture struct {
	monitor  *Monitor
	registry *registry.Registry
	fetcher  *MockFetcher
	notifier *MockNotifier
	pacer    *MockPacer
}

func newFixture(opts ...registry.Option) *fixture {
	reg := registry.New(registry.NewMemoryStore(), opts...)
	f := &fixture{
		registry: reg,
		fetcher:  NewMockFetcher(),
		notifier: &MockNotifier{},
		pacer:    &MockPacer{},
	}
	f.monitor = New(reg, f.fetcher, f.notifier, f.pacer)
	return f
}

func (f *fixture) track(t *testing.T, id, url string, target float64) string {
	t.Helper()
	got, _, err := f.monitor.Track(context.Background(), TrackRequest{
		ID:          id,
		URL:         url,
		OwnerEmail:  "owner@example.com",
		TargetPrice: target,
	})
	require.NoError(t, err)
	return got
}

func TestTrackRunsInitialCheck(t *testing.T) {
	f := newFixture()
	f.fetcher.set("https://shop.example/a", 500)

	id, initial, err := f.monitor.Track(context.Background(), TrackRequest{
		URL:         "https://shop.example/a",
		OwnerEmail:  "owner@example.com",
		TargetPrice: 400,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// first observation: previous equals current, above target, no alert
	assert.True(t, initial.Success)
	assert.False(t, initial.ShouldNotify)
	assert.Equal(t, 500.0, initial.CurrentPrice)
	assert.Equal(t, 500.0, initial.PreviousPrice)
	assert.Equal(t, MessageNoDrop, initial.Message)
	assert.Empty(t, f.notifier.alerts)

	p, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Amazon Product", p.Title)
	require.NotNil(t, p.LastPrice)
	assert.Equal(t, 500.0, *p.LastPrice)
	assert.Len(t, p.PriceHistory, 1)
	assert.NotNil(t, p.LastCheckedAt)
}

func TestTrackFirstObservationBelowTarget(t *testing.T) {
	f := newFixture()
	f.fetcher.set("https://shop.example/a", 500)

	_, initial, err := f.monitor.Track(context.Background(), TrackRequest{
		URL:         "https://shop.example/a",
		OwnerEmail:  "owner@example.com",
		TargetPrice: 600,
	})
	require.NoError(t, err)
	assert.True(t, initial.ShouldNotify)
	assert.Equal(t, 0, initial.DropPercentage)
	assert.Equal(t, MessageDropNotified, initial.Message)
	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, 0, f.notifier.alerts[0].DropPercentage)
}

func TestTrackValidation(t *testing.T) {
	f := newFixture()

	for _, req := range []TrackRequest{
		{OwnerEmail: "a@example.com", TargetPrice: 10},
		{URL: "https://shop.example/a", TargetPrice: 10},
		{URL: "https://shop.example/a", OwnerEmail: "a@example.com"},
	} {
		_, _, err := f.monitor.Track(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	}
}

func TestTrackKeepsSuppliedTitle(t *testing.T) {
	f := newFixture()
	f.fetcher.set("https://shop.example/a", 500)

	id, _, err := f.monitor.Track(context.Background(), TrackRequest{
		ID:          "p1",
		URL:         "https://shop.example/a",
		OwnerEmail:  "owner@example.com",
		TargetPrice: 400,
		Title:       "Kettle",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	p, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Kettle", p.Title)
}

func TestRetrackWithoutTitleKeepsKnownTitle(t *testing.T) {
	f := newFixture()
	url := "https://shop.example/a"
	f.fetcher.set(url, 500)

	req := TrackRequest{ID: "p1", URL: url, OwnerEmail: "owner@example.com", TargetPrice: 400, Title: "Kettle"}
	_, _, err := f.monitor.Track(context.Background(), req)
	require.NoError(t, err)

	req.Title = ""
	req.TargetPrice = 350
	_, _, err = f.monitor.Track(context.Background(), req)
	require.NoError(t, err)

	p, err := f.registry.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Kettle", p.Title)
	assert.Equal(t, 350.0, p.TargetPrice)
}

func TestCheckDetectsDrop(t *testing.T) {
	f := newFixture()
	url := "https://shop.example/a"
	f.fetcher.set(url, 100)
	id := f.track(t, "p1", url, 90)

	f.fetcher.set(url, 80)
	f.fetcher.titles[url] = "Steel Kettle"

	res, err := f.monitor.Check(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.PriceDrop)
	assert.True(t, res.ShouldNotify)
	assert.Equal(t, 80.0, res.CurrentPrice)
	assert.Equal(t, 100.0, res.PreviousPrice)
	assert.Equal(t, 20, res.DropPercentage)
	assert.Equal(t, MessageDropNotified, res.Message)

	require.Len(t, f.notifier.alerts, 1)
	alert := f.notifier.alerts[0]
	assert.Equal(t, "owner@example.com", alert.Recipient)
	assert.Equal(t, "Steel Kettle", alert.Title)
	assert.Equal(t, 100.0, alert.OldPrice)
	assert.Equal(t, 80.0, alert.NewPrice)
	assert.Equal(t, 20, alert.DropPercentage)

	p, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 80.0, *p.LastPrice)
	assert.Len(t, p.PriceHistory, 2)
	assert.Equal(t, "Steel Kettle", p.Title)
}

func TestCheckNoDrop(t *testing.T) {
	f := newFixture()
	url := "https://shop.example/a"
	f.fetcher.set(url, 100)
	id := f.track(t, "p1", url, 90)

	f.fetcher.set(url, 110)
	res, err := f.monitor.Check(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.PriceDrop)
	assert.Equal(t, 100.0, res.PreviousPrice)
	assert.Equal(t, MessageNoDrop, res.Message)
	assert.Empty(t, f.notifier.alerts)
}

func TestCheckUnknownProduct(t *testing.T) {
	f := newFixture()

	_, err := f.monitor.Check(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.Empty(t, f.fetcher.calls)
}

func TestCheckFetchFailureOnlyStampsAttempt(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(registry.WithClock(func() time.Time { return now }))
	url := "https://shop.example/a"
	f.fetcher.set(url, 100)
	id := f.track(t, "p1", url, 90)

	before, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	f.fetcher.fail(url, apperrors.NewParsing("fetcher", "Could not extract price from page"))
	res, err := f.monitor.Check(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Could not extract price from page", res.Error)

	after, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, after.LastCheckedAt)
	assert.True(t, now.Equal(*after.LastCheckedAt))

	after.LastCheckedAt = before.LastCheckedAt
	assert.Equal(t, before, after)
	assert.Empty(t, f.notifier.alerts)
}

func TestTrackStampsAttemptWhenInitialFetchFails(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(registry.WithClock(func() time.Time { return now }))
	url := "https://shop.example/broken"
	f.fetcher.fail(url, apperrors.NewFetch("fetcher", "navigation failed", errors.New("net::ERR_FAILED")))

	id, initial, err := f.monitor.Track(context.Background(), TrackRequest{
		URL:         url,
		OwnerEmail:  "owner@example.com",
		TargetPrice: 90,
	})
	require.NoError(t, err)
	assert.False(t, initial.Success)

	p, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p.LastCheckedAt)
	assert.True(t, now.Equal(*p.LastCheckedAt))
	assert.Nil(t, p.LastPrice)
	assert.Empty(t, p.PriceHistory)
	assert.Equal(t, "Amazon Product", p.Title)
}

func TestCheckDispatchFailureKeepsUpdate(t *testing.T) {
	f := newFixture()
	url := "https://shop.example/a"
	f.fetcher.set(url, 100)
	id := f.track(t, "p1", url, 50)

	f.notifier.err = apperrors.NewDispatch("notifier", "failed to send alert email", errors.New("403"))
	f.fetcher.set(url, 90)

	res, err := f.monitor.Check(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.PriceDrop)
	assert.Equal(t, 10, res.DropPercentage)
	assert.Equal(t, MessageDropNotSent, res.Message)
	assert.Contains(t, res.NotificationError, "403")

	p, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 90.0, *p.LastPrice)
}

func TestCheckKeepsKnownTitleWhenExtractionFails(t *testing.T) {
	f := newFixture()
	url := "https://shop.example/a"
	f.fetcher.set(url, 100)
	f.fetcher.titles[url] = "Kettle"
	id := f.track(t, "p1", url, 50)

	delete(f.fetcher.titles, url)
	_, err := f.monitor.Check(context.Background(), id)
	require.NoError(t, err)

	p, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Kettle", p.Title)
}

func TestConcurrentChecksDoNotLoseHistory(t *testing.T) {
	f := newFixture()
	url := "https://shop.example/a"
	f.fetcher.set(url, 100)
	id := f.track(t, "p1", url, 50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.monitor.Check(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, p.PriceHistory, 11)
}

func TestEdit(t *testing.T) {
	f := newFixture()
	url := "https://shop.example/a"
	f.fetcher.set(url, 100)
	id := f.track(t, "p1", url, 50)

	target := 95.0
	p, err := f.monitor.Edit(context.Background(), id, Edit{TargetPrice: &target})
	require.NoError(t, err)
	assert.Equal(t, 95.0, p.TargetPrice)
	assert.Len(t, p.PriceHistory, 1)

	bad := -1.0
	_, err = f.monitor.Edit(context.Background(), id, Edit{TargetPrice: &bad})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.monitor.Edit(context.Background(), "missing", Edit{TargetPrice: &target})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestCheckAllIsolatesFailures(t *testing.T) {
	f := newFixture()
	urls := []string{"https://shop.example/1", "https://shop.example/2", "https://shop.example/3"}
	for i, url := range urls {
		f.fetcher.set(url, 100)
		f.track(t, []string{"p1", "p2", "p3"}[i], url, 50)
	}
	f.fetcher.calls = nil

	f.fetcher.set(urls[0], 90)
	f.fetcher.fail(urls[1], apperrors.NewFetch("fetcher", "timed out after 20s loading "+urls[1], context.DeadlineExceeded))
	f.fetcher.set(urls[2], 120)

	bulk, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Len(t, bulk.Results, 3)
	assert.Equal(t, 3, bulk.TotalChecked)

	assert.Equal(t, "p1", bulk.Results[0].ProductID)
	assert.True(t, bulk.Results[0].Success)
	assert.True(t, bulk.Results[0].PriceDrop)

	assert.Equal(t, "p2", bulk.Results[1].ProductID)
	assert.False(t, bulk.Results[1].Success)
	assert.Contains(t, bulk.Results[1].Error, "timed out")

	assert.Equal(t, "p3", bulk.Results[2].ProductID)
	assert.True(t, bulk.Results[2].Success)
	assert.False(t, bulk.Results[2].PriceDrop)

	// enumeration order, paced between items only
	assert.Equal(t, urls, f.fetcher.calls)
	assert.Equal(t, 2, f.pacer.waits)
}

func TestCheckAllEmpty(t *testing.T) {
	f := newFixture()

	bulk, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bulk.Results)
	assert.Equal(t, 0, bulk.TotalChecked)
	assert.Equal(t, 0, f.pacer.waits)
}

func TestCheckAllCancellation(t *testing.T) {
	f := newFixture()
	for i, id := range []string{"p1", "p2", "p3"} {
		url := "https://shop.example/" + id
		f.fetcher.set(url, float64(100+i))
		f.track(t, id, url, 50)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.fetcher.onCall = func(url string) { cancel() }

	bulk, err := f.monitor.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, bulk.Results, 3)

	assert.Equal(t, "p1", bulk.Results[0].ProductID)
	assert.Equal(t, "p2", bulk.Results[1].ProductID)
	assert.Equal(t, MessageCheckCancelled, bulk.Results[1].Error)
	assert.Equal(t, "p3", bulk.Results[2].ProductID)
	assert.Equal(t, MessageCheckCancelled, bulk.Results[2].Error)
}

func TestDelayPacer(t *testing.T) {
	p := NewDelayPacer(30 * time.Millisecond)

	started := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(started), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewDelayPacer(time.Hour).Wait(ctx), context.Canceled)

	assert.NoError(t, NewDelayPacer(0).Wait(context.Background()))
}

func TestCheckResultJSON(t *testing.T) {
	drop, err := json.Marshal(CheckResult{
		Success: true, PriceDrop: true, ShouldNotify: true,
		CurrentPrice: 80, PreviousPrice: 100, DropPercentage: 20,
		Message: MessageDropNotified,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"priceDrop":true,"shouldNotify":true,"currentPrice":80,"previousPrice":100,"dropPercentage":20,"message":"Price drop detected! Email sent."}`, string(drop))

	noDrop, err := json.Marshal(CheckResult{Success: true, CurrentPrice: 110, PreviousPrice: 100, Message: MessageNoDrop})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"priceDrop":false,"shouldNotify":false,"currentPrice":110,"previousPrice":100,"message":"No price drop detected"}`, string(noDrop))

	failed, err := json.Marshal(failure("p1", "Could not extract price from page"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p1","success":false,"error":"Could not extract price from page"}`, string(failed))
}
