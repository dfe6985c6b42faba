// Package poller 驱动远程异步生成任务直到完成、失败或超时。
//
// 远程服务没有回调通知，唯一的约定是轮询状态地址：带数据的 2xx 表示完成，
// 202 或不带数据的 2xx 表示还没完成，4xx 以上且状态为 FAILED 表示失败。
// 轮询严格串行，每次查询结束后才会发起下一次。每次查询有独立超时，
// 整个轮询还受总等待时间限制，慢响应不会把等待拉长到次数乘以 HTTP 超时。
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imagehost-mcp/common"
	"imagehost-mcp/internal/utils"
)

const (
	DefaultMaxAttempts    = 60
	DefaultInterval       = 3 * time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// StatusFetcher 查询某个资源路径对应的生成任务状态；返回 error 仅表示传输失败
type StatusFetcher interface {
	FetchStatus(ctx context.Context, resourcePath string) (*StatusResponse, error)
}

// PayloadFetcher 下载状态接口返回的远程图片地址
type PayloadFetcher func(ctx context.Context, url string) ([]byte, string, error)

// Result 轮询成功的结果
type Result struct {
	Data     []byte
	MIMEType string
	Attempts int
	Elapsed  time.Duration
}

// Poller 有界轮询器，可被多个并发调用共享（自身无可变状态）
type Poller struct {
	fetcher        StatusFetcher
	payloadFetcher PayloadFetcher
	maxAttempts    int
	interval       time.Duration
	attemptTimeout time.Duration
	maxWait        time.Duration
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
}

// Option 轮询器选项
type Option func(*Poller)

// WithMaxAttempts 设置最大查询次数
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithInterval 设置两次查询之间的间隔
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithAttemptTimeout 设置单次状态查询的超时
func WithAttemptTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.attemptTimeout = d
		}
	}
}

// WithMaxWait 设置整个轮询的总等待时间；默认是两倍的计划间隔总和再加一次查询超时
func WithMaxWait(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.maxWait = d
		}
	}
}

// WithPayloadFetcher 替换远程图片的下载实现
func WithPayloadFetcher(f PayloadFetcher) Option {
	return func(p *Poller) {
		if f != nil {
			p.payloadFetcher = f
		}
	}
}

// WithClock 替换时钟与等待实现（测试中使用模拟时间）
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// New 创建轮询器，默认最多 60 次、间隔 3 秒
func New(fetcher StatusFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:        fetcher,
		payloadFetcher: utils.DownloadImageFromURL,
		maxAttempts:    DefaultMaxAttempts,
		interval:       DefaultInterval,
		attemptTimeout: DefaultAttemptTimeout,
		now:            time.Now,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts 返回最大查询次数
func (p *Poller) MaxAttempts() int {
	return p.maxAttempts
}

// Interval 返回两次查询之间的间隔
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// MaxWait 返回整个轮询的总等待时间
func (p *Poller) MaxWait() time.Duration {
	if p.maxWait > 0 {
		return p.maxWait
	}
	return 2*time.Duration(p.maxAttempts)*p.interval + p.attemptTimeout
}

// Poll 轮询 resourcePath 直到拿到图片数据。
// 任务明确失败时立即返回 *JobFailedError；次数耗尽或超过总等待时间返回 *TimeoutError；
// ctx 取消时立即停止并返回 ctx.Err()。
func (p *Poller) Poll(ctx context.Context, resourcePath string) (*Result, error) {
	if p.fetcher == nil {
		return nil, errors.New("poller has no status fetcher")
	}

	start := p.now()
	deadline := start.Add(p.MaxWait())
	logger := common.WithField("resource_path", resourcePath)

	attempts := 0
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			break
		}
		attempts = attempt

		resp, fetchErr := p.fetchStatus(ctx, resourcePath, remaining)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		outcome := Interpret(resp, fetchErr)
		switch outcome.Kind {
		case Failed:
			logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"reason":  outcome.Reason,
			}).Error("Image generation job failed")
			return nil, &JobFailedError{Path: resourcePath, Attempts: attempt, Reason: outcome.Reason}

		case Ready:
			data, mimeType, err := p.materialize(ctx, outcome)
			if err == nil {
				elapsed := p.now().Sub(start)
				logger.WithFields(map[string]interface{}{
					"attempts": attempt,
					"elapsed":  elapsed.String(),
					"size":     len(data),
				}).Info("Image generation job completed")
				return &Result{Data: data, MIMEType: mimeType, Attempts: attempt, Elapsed: elapsed}, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.WithError(err).WithField("attempt", attempt).Warn("Failed to fetch media payload, will retry")

		default:
			logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"reason":  outcome.Reason,
			}).Debug("Image generation job still pending")
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}
	}

	elapsed := p.now().Sub(start)
	logger.WithFields(map[string]interface{}{
		"attempts": attempts,
		"elapsed":  elapsed.String(),
	}).Warn("Image generation job timed out")
	return nil, &TimeoutError{Path: resourcePath, Attempts: attempts, Elapsed: elapsed}
}

// fetchStatus 单次查询，超时取单次上限与剩余总时间中较小者
func (p *Poller) fetchStatus(ctx context.Context, resourcePath string, remaining time.Duration) (*StatusResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, min(p.attemptTimeout, remaining))
	defer cancel()
	return p.fetcher.FetchStatus(attemptCtx, resourcePath)
}

// materialize 返回内联数据，或下载远程地址
func (p *Poller) materialize(ctx context.Context, outcome Outcome) ([]byte, string, error) {
	if outcome.PayloadURL == "" {
		return outcome.Data, outcome.MIMEType, nil
	}
	data, mimeType, err := p.payloadFetcher(ctx, outcome.PayloadURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media payload: %w", err)
	}
	if outcome.MIMEType != "" {
		mimeType = outcome.MIMEType
	}
	return data, mimeType, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
