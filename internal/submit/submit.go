// Package submit fans a finished questionnaire out to every configured sink.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/lsocheck/internal/metrics"
	"github.com/pavelanni/lsocheck/internal/model"
)

// Sink receives finished submissions.
type Sink interface {
	Name() string
	Send(ctx context.Context, sub model.Submission) error
}

// DeliveryRecorder keeps the per-sink outcome of each dispatch.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, d model.Delivery) error
}

// ErrClosed is reported for dispatches requested after Shutdown.
var ErrClosed = errors.New("dispatcher closed")

// SinkError is the final failure of one sink after all attempts.
type SinkError struct {
	Sink     string
	Attempts int
	Err      error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Sink, e.Attempts, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// ExternalSubmissionError lists every sink that could not take a submission.
type ExternalSubmissionError struct {
	SubmissionID string
	Failures     []*SinkError
}

func (e *ExternalSubmissionError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("submission %s: %s", e.SubmissionID, strings.Join(parts, "; "))
}

func (e *ExternalSubmissionError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Config controls retries and the background dispatch deadline.
type Config struct {
	Retries    int           // extra attempts per sink after the first
	RetryDelay time.Duration // fixed pause between attempts
	Timeout    time.Duration // deadline for DispatchAsync
}

// Dispatcher sends submissions to its sinks concurrently.
type Dispatcher struct {
	cfg      Config
	sinks    []Sink
	recorder DeliveryRecorder

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. recorder may be nil.
func NewDispatcher(cfg Config, recorder DeliveryRecorder, sinks ...Sink) *Dispatcher {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Dispatcher{cfg: cfg, sinks: sinks, recorder: recorder}
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch sends sub to every sink and waits for all of them. A failing
// sink does not stop the others; the returned error is an
// *ExternalSubmissionError naming each sink that gave up.
func (d *Dispatcher) Dispatch(ctx context.Context, sub model.Submission) error {
	failures := make([]*SinkError, len(d.sinks))

	var g errgroup.Group
	for i, s := range d.sinks {
		g.Go(func() error {
			start := time.Now()
			attempts, err := d.sendWithRetry(ctx, s, sub)
			took := time.Since(start)

			status := model.DeliveryOK
			delivery := model.Delivery{
				SubmissionID: sub.ID,
				Sink:         s.Name(),
				Attempts:     attempts,
				At:           time.Now().UTC(),
			}
			if err != nil {
				status = model.DeliveryFailed
				delivery.Error = err.Error()
				failures[i] = &SinkError{Sink: s.Name(), Attempts: attempts, Err: err}
				slog.Warn("submission delivery failed", "submission", sub.ID, "sink", s.Name(), "attempts", attempts, "error", err)
			} else {
				slog.Info("submission delivered", "submission", sub.ID, "sink", s.Name(), "attempts", attempts, "took", took)
			}
			delivery.Status = status
			metrics.SubmissionDelivered(s.Name(), string(status), took)
			d.record(ctx, delivery)
			return nil
		})
	}
	_ = g.Wait()

	var failed []*SinkError
	for _, f := range failures {
		if f != nil {
			failed = append(failed, f)
		}
	}
	if len(failed) > 0 {
		return &ExternalSubmissionError{SubmissionID: sub.ID, Failures: failed}
	}
	return nil
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, s Sink, sub model.Submission) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		if err = s.Send(ctx, sub); err == nil {
			return attempt, nil
		}
		if attempt > d.cfg.Retries {
			return attempt, err
		}
		t := time.NewTimer(d.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, fmt.Errorf("%w (gave up: %v)", err, ctx.Err())
		case <-t.C:
		}
	}
}

func (d *Dispatcher) record(ctx context.Context, delivery model.Delivery) {
	if d.recorder == nil {
		return
	}
	// The outcome is kept even when the dispatch deadline has passed.
	if err := d.recorder.RecordDelivery(context.WithoutCancel(ctx), delivery); err != nil {
		slog.Error("failed to record delivery", "submission", delivery.SubmissionID, "sink", delivery.Sink, "error", err)
	}
}

// DispatchAsync runs Dispatch in the background under the configured
// timeout. done, if non-nil, is called with the result.
func (d *Dispatcher) DispatchAsync(sub model.Submission, done func(error)) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if done != nil {
			done(ErrClosed)
		}
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		defer cancel()
		err := d.Dispatch(ctx, sub)
		if err != nil {
			slog.Error("submission dispatch incomplete", "submission", sub.ID, "error", err)
		}
		if done != nil {
			done(err)
		}
	}()
}

// Wait blocks until every background dispatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting background dispatches and waits for the
// in-flight ones, or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
