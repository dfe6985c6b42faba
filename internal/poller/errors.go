package poller

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout 轮询次数耗尽，任务之后仍可能完成
	ErrTimeout = errors.New("image generation timed out")
	// ErrJobFailed 远程任务明确失败
	ErrJobFailed = errors.New("image generation failed")
)

// TimeoutError 轮询超时，包含耗时与目标路径
type TimeoutError struct {
	Path     string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("image generation timed out after %s (%d attempts) waiting for %s",
		e.Elapsed.Round(time.Second), e.Attempts, e.Path)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// JobFailedError 远程任务返回 FAILED
type JobFailedError struct {
	Path     string
	Attempts int
	Reason   string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("image generation failed for %s: %s", e.Path, e.Reason)
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }
