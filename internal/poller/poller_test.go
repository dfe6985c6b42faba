package poller

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}

func readyBody(data []byte) []byte {
	return []byte(fmt.Sprintf(`{"success":true,"status":"COMPLETED","mediaAsset":{"data":"data:image/png;base64,%s"}}`,
		base64.StdEncoding.EncodeToString(data)))
}

type step struct {
	resp *StatusResponse
	err  error
}

// scriptedFetcher 按顺序返回预设结果，超出脚本后一直返回 202
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
	paths []string
}

func (f *scriptedFetcher) FetchStatus(ctx context.Context, resourcePath string) (*StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.paths = append(f.paths, resourcePath)
	if f.calls <= len(f.steps) {
		s := f.steps[f.calls-1]
		return s.resp, s.err
	}
	return &StatusResponse{StatusCode: http.StatusAccepted}, nil
}

// fakeClock 模拟时间：sleep 只推进时钟
type fakeClock struct {
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func newTestPoller(f StatusFetcher, clock *fakeClock, opts ...Option) *Poller {
	opts = append([]Option{WithClock(clock.Now, clock.Sleep)}, opts...)
	return New(f, opts...)
}

func accepted() step { return step{resp: &StatusResponse{StatusCode: http.StatusAccepted}} }

func TestPollReadyAfterTwentyNineAccepted(t *testing.T) {
	steps := make([]step, 0, 30)
	for i := 0; i < 29; i++ {
		steps = append(steps, accepted())
	}
	steps = append(steps, step{resp: &StatusResponse{StatusCode: http.StatusOK, Body: readyBody(pngBytes)}})
	fetcher := &scriptedFetcher{steps: steps}
	clock := newFakeClock()

	result, err := newTestPoller(fetcher, clock).Poll(context.Background(), "demo/happy-duck_800x600.png")

	require.NoError(t, err)
	assert.Equal(t, pngBytes, result.Data)
	assert.Equal(t, "image/png", result.MIMEType)
	assert.Equal(t, 30, result.Attempts)
	assert.Equal(t, 30, fetcher.calls)
	assert.Equal(t, 29*DefaultInterval, result.Elapsed)
	assert.Equal(t, "demo/happy-duck_800x600.png", fetcher.paths[0])
}

func TestPollReadyAfterTransientErrors(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{err: errors.New("connection reset by peer")},
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: []byte("not json")}},
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: []byte(`{"success":true}`)}},
		{resp: &StatusResponse{StatusCode: http.StatusBadGateway, Body: []byte("upstream")}},
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: []byte(`{"success":true,"mediaAsset":{"data":"data:image/png;base64,!!!"}}`)}},
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: readyBody(pngBytes)}},
	}}
	clock := newFakeClock()

	result, err := newTestPoller(fetcher, clock).Poll(context.Background(), "demo/a_100x100.png")

	require.NoError(t, err)
	assert.Equal(t, 6, result.Attempts)
	assert.Equal(t, 5, clock.sleeps)
}

func TestPollFailsImmediately(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		accepted(),
		{resp: &StatusResponse{StatusCode: http.StatusUnprocessableEntity, Body: []byte(`{"status":"FAILED","message":"content policy"}`)}},
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: readyBody(pngBytes)}},
	}}
	clock := newFakeClock()

	_, err := newTestPoller(fetcher, clock).Poll(context.Background(), "demo/a_100x100.png")

	var failed *JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Equal(t, 2, failed.Attempts)
	assert.Contains(t, failed.Reason, "content policy")
	assert.Equal(t, 2, fetcher.calls, "no attempts after a terminal failure")
}

func TestPollFailsOnUnauthorized(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{resp: &StatusResponse{StatusCode: http.StatusUnauthorized, Body: []byte(`{"error":"invalid api key"}`)}},
	}}

	_, err := newTestPoller(fetcher, newFakeClock()).Poll(context.Background(), "demo/a_100x100.png")

	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Equal(t, 1, fetcher.calls)
}

func TestPollTimesOut(t *testing.T) {
	fetcher := &scriptedFetcher{}
	clock := newFakeClock()

	_, err := newTestPoller(fetcher, clock).Poll(context.Background(), "demo/slow_100x100.png")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, DefaultMaxAttempts, fetcher.calls)
	assert.Equal(t, DefaultMaxAttempts, timeout.Attempts)
	assert.LessOrEqual(t, timeout.Elapsed, 180*time.Second)
	assert.Contains(t, err.Error(), "demo/slow_100x100.png")
	assert.Contains(t, err.Error(), "2m57s")
}

func TestPollAlwaysTerminates(t *testing.T) {
	responses := []step{
		accepted(),
		{err: errors.New("timeout")},
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: []byte(`{}`)}},
		{resp: &StatusResponse{StatusCode: http.StatusInternalServerError}},
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: []byte(`{"success":false,"status":"PROCESSING"}`)}},
	}
	for seed := 0; seed < len(responses); seed++ {
		steps := make([]step, 0, 100)
		for i := 0; i < 100; i++ {
			steps = append(steps, responses[(i*7+seed)%len(responses)])
		}
		fetcher := &scriptedFetcher{steps: steps}

		_, err := newTestPoller(fetcher, newFakeClock(), WithMaxAttempts(10)).Poll(context.Background(), "demo/x_100x100.png")

		assert.ErrorIs(t, err, ErrTimeout)
		assert.Equal(t, 10, fetcher.calls)
	}
}

func TestPollSecondaryFetch(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: []byte(`{"success":true,"mediaAsset":{"data":"https://cdn.example.com/x.jpg"}}`)}},
		{resp: &StatusResponse{StatusCode: http.StatusOK, Body: []byte(`{"success":true,"mediaAsset":{"data":"https://cdn.example.com/x.jpg"}}`)}},
	}}
	downloads := 0
	download := func(ctx context.Context, url string) ([]byte, string, error) {
		downloads++
		assert.Equal(t, "https://cdn.example.com/x.jpg", url)
		if downloads == 1 {
			return nil, "", errors.New("404")
		}
		return []byte("jpeg-bytes"), "image/jpeg", nil
	}

	result, err := newTestPoller(fetcher, newFakeClock(), WithPayloadFetcher(download)).Poll(context.Background(), "demo/x_100x100.jpg")

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), result.Data)
	assert.Equal(t, "image/jpeg", result.MIMEType)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, downloads)
}

func TestPollStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &scriptedFetcher{}
	clock := newFakeClock()
	sleep := func(ctx context.Context, d time.Duration) error {
		if clock.sleeps == 3 {
			cancel()
		}
		return clock.Sleep(ctx, d)
	}

	_, err := New(fetcher, WithClock(clock.Now, sleep)).Poll(ctx, "demo/x_100x100.png")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, fetcher.calls)
}

func TestPollWithRealSleepHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(&scriptedFetcher{}, WithInterval(time.Hour)).Poll(ctx, "demo/x_100x100.png")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

type fetchFunc func(ctx context.Context, resourcePath string) (*StatusResponse, error)

func (f fetchFunc) FetchStatus(ctx context.Context, resourcePath string) (*StatusResponse, error) {
	return f(ctx, resourcePath)
}

func TestPollBoundsEachAttempt(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	allHadDeadline := true
	hanging := fetchFunc(func(ctx context.Context, resourcePath string) (*StatusResponse, error) {
		mu.Lock()
		calls++
		if _, ok := ctx.Deadline(); !ok {
			allHadDeadline = false
		}
		mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	_, err := New(hanging,
		WithMaxAttempts(3),
		WithInterval(0),
		WithAttemptTimeout(20*time.Millisecond),
		WithMaxWait(10*time.Second),
	).Poll(context.Background(), "demo/x_100x100.png")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, 3, calls)
	assert.True(t, allHadDeadline)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPollStopsAtMaxWait(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	var budgets []time.Duration
	slow := fetchFunc(func(ctx context.Context, resourcePath string) (*StatusResponse, error) {
		calls++
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		budgets = append(budgets, time.Until(deadline).Round(time.Second))
		clock.now = clock.now.Add(10 * time.Second)
		return &StatusResponse{StatusCode: http.StatusAccepted}, nil
	})

	p := newTestPoller(slow, clock, WithMaxWait(30*time.Second), WithAttemptTimeout(time.Minute))
	_, err := p.Poll(context.Background(), "demo/x_100x100.png")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	// 0s、13s、26s 发起查询，39s 时超过 30s 的总时间
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, 39*time.Second, timeout.Elapsed)
	// 每次查询的超时不超过剩余总时间
	assert.Equal(t, []time.Duration{30 * time.Second, 17 * time.Second, 4 * time.Second}, budgets)
}

func TestPollerAccessors(t *testing.T) {
	p := New(&scriptedFetcher{})
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts())
	assert.Equal(t, DefaultInterval, p.Interval())
	assert.Equal(t, 2*DefaultMaxAttempts*DefaultInterval+DefaultAttemptTimeout, p.MaxWait())

	p = New(&scriptedFetcher{}, WithMaxAttempts(10), WithInterval(2*time.Second), WithMaxWait(time.Minute))
	assert.Equal(t, 10, p.MaxAttempts())
	assert.Equal(t, 2*time.Second, p.Interval())
	assert.Equal(t, time.Minute, p.MaxWait())
}
