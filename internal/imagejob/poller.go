package imagejob

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/metrics"
)

// State is the poller's view of a job's lifecycle.
type State int

const (
	Submitted State = iota
	Polling
	Succeeded
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Polling:
		return "polling"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polls will change the state.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == TimedOut
}

// Result is the poller's terminal outcome for one job.
type Result struct {
	JobID     string
	State     State
	ResultURL string
	FailMsg   string
	Attempts  int
}

// Poller drives an asynchronous job to a terminal state at a fixed interval.
// No backoff: the webhook invocation that owns the poll has a bounded
// lifetime, so the interval and attempt ceiling are the whole budget.
type Poller struct {
	client      Client
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewPoller creates a poller. Zero interval and attempts take the defaults
// (5s, 60 attempts — a five minute budget).
func NewPoller(client Client, interval time.Duration, maxAttempts int, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &Poller{client: client, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// Await polls jobID until success, failure, or the attempt ceiling.
// Exhausting attempts without a terminal provider state yields TimedOut,
// which downstream treats as a failure.
func (p *Poller) Await(ctx context.Context, jobID string) Result {
	start := time.Now()
	res := Result{JobID: jobID, State: Polling}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		res.Attempts = attempt

		status, err := p.client.PollJob(ctx, jobID)
		if err != nil {
			// A failed poll call is not a failed job; keep polling.
			metrics.ImageJobPolls.WithLabelValues("error").Inc()
			p.logger.Warn("Poll call failed",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else {
			p.logger.Debug("Poll attempt",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt),
				zap.String("state", status.State))
			switch status.State {
			case stateSuccess:
				metrics.ImageJobPolls.WithLabelValues("success").Inc()
				metrics.ImageJobDuration.Observe(time.Since(start).Seconds())
				res.State = Succeeded
				res.ResultURL = status.ResultURL
				return res
			case stateFail:
				metrics.ImageJobPolls.WithLabelValues("fail").Inc()
				metrics.ImageJobDuration.Observe(time.Since(start).Seconds())
				res.State = Failed
				res.FailMsg = status.FailMsg
				if res.FailMsg == "" {
					res.FailMsg = "Generation failed"
				}
				return res
			default:
				metrics.ImageJobPolls.WithLabelValues("pending").Inc()
			}
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			res.State = TimedOut
			res.FailMsg = ctx.Err().Error()
			return res
		}
	}

	res.State = TimedOut
	res.FailMsg = "Timeout waiting for image generation"
	metrics.ImageJobDuration.Observe(time.Since(start).Seconds())
	return res
}
