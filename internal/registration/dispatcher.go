package registration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/fabric-pricing/internal/obs"
	"github.com/noah-isme/fabric-pricing/internal/shopauth"
)

// Dispatcher runs registration tasks in the background after authentication.
// Failures are logged and counted; they never reach the caller.
type Dispatcher struct {
	tasks   []Task
	logger  zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher. A zero timeout leaves calls bounded
// only by the HTTP client.
func NewDispatcher(logger zerolog.Logger, timeout time.Duration, tasks ...Task) *Dispatcher {
	return &Dispatcher{tasks: tasks, logger: logger, timeout: timeout}
}

// AfterAuth starts every task for sess in its own goroutine and returns
// immediately. A hanging task does not hold back the others.
func (d *Dispatcher) AfterAuth(ctx context.Context, sess shopauth.Session) {
	if d == nil || len(d.tasks) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(len(d.tasks))
	for _, task := range d.tasks {
		go func() {
			defer d.wg.Done()
			d.run(ctx, task, sess)
		}()
	}
}

// Wait blocks until all scheduled dispatches have finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Drain waits for in-flight dispatches or until ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context, task Task, sess shopauth.Session) {
	kind := task.Kind()
	ctx, span := otel.Tracer("registration.Dispatcher").Start(ctx, "Dispatcher."+kind)
	defer span.End()
	span.SetAttributes(attribute.String("shopify.shop", sess.Shop))

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := d.invoke(ctx, task, sess)
	elapsed := time.Since(start)
	obs.CountRegistration(kind, string(outcome))
	obs.ObserveRegistration(kind, float64(elapsed.Milliseconds()))
	span.SetAttributes(attribute.String("registration.outcome", string(outcome)))

	logger := d.logger.With().Str("shop", sess.Shop).Str("kind", kind).Dur("duration", elapsed).Logger()
	switch outcome {
	case OutcomeRegistered:
		logger.Info().Msg("registration completed")
	case OutcomeAlreadyRegistered:
		logger.Info().Msg("registration already present")
	case OutcomeDisabled:
		logger.Warn().Msg("registration disabled by configuration")
	default:
		span.RecordError(err)
		logger.Error().Err(err).Msg("registration failed")
	}
}

func (d *Dispatcher) invoke(ctx context.Context, task Task, sess shopauth.Session) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeFailed, fmt.Errorf("registration: panic: %v", r)
		}
	}()
	outcome, err = task.Register(ctx, sess)
	if err != nil {
		outcome = OutcomeFailed
	}
	return outcome, err
}
