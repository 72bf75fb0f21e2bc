package client

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout distinguishes "the job is still processing" from a job
// that actually failed: the caller can keep the job id and poll again.
var ErrWaitTimeout = errors.New("timed out waiting for job")

// WaitOptions tunes the polling loop.
type WaitOptions struct {
	// Initial is the first poll interval.
	Initial time.Duration
	// Factor multiplies the interval after each poll.
	Factor float64
	// Cap bounds the interval growth.
	Cap time.Duration
	// Budget bounds the total wait before ErrWaitTimeout.
	Budget time.Duration
}

// DefaultWaitOptions poll at 2s growing 1.5x up to 15s, for at most 10
// minutes.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Initial: 2 * time.Second,
		Factor:  1.5,
		Cap:     15 * time.Second,
		Budget:  10 * time.Minute,
	}
}

// WaitForJob polls the job until it reaches a terminal status. Transient
// poll errors are swallowed and retried on the next tick; the context
// cancels the wait early.
func (c *Client) WaitForJob(ctx context.Context, jobID string, opts WaitOptions) (*JobStatus, error) {
	if opts.Initial <= 0 {
		opts = DefaultWaitOptions()
	}
	deadline := time.Now().Add(opts.Budget)
	interval := opts.Initial

	for {
		status, err := c.Job(ctx, jobID)
		if err == nil && status.Status.Terminal() {
			return status, nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if time.Now().Add(interval).After(deadline) {
			return nil, ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * opts.Factor)
		if interval > opts.Cap {
			interval = opts.Cap
		}
	}
}
