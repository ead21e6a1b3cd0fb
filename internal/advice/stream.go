package advice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"energy-advisor/internal/homes"
	"energy-advisor/internal/llm"
	"energy-advisor/internal/shared/metrics"
	"energy-advisor/internal/shared/telemetry"
	"energy-advisor/internal/shared/util"
)

const (
	DefaultTimeout = 120 * time.Second

	msgUnreachable = "Cannot reach the generation backend. Ensure it is running."
	msgTimeout     = "Request to the generation backend timed out. Please try again."
	msgIncomplete  = "Backend stream ended before completion"

	tracerName = "energy-advisor/advice"
)

// EmitFunc delivers one event to the client. A non-nil error stops the stream.
type EmitFunc func(Event) error

// Streamer turns one backend generation into an ordered event sequence:
// connected, zero or more recommendations, then complete or error.
type Streamer struct {
	Generator llm.Generator
	Model     string
	Timeout   time.Duration
	Now       func() time.Time
	Tracer    trace.Tracer
}

func (s *Streamer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Streamer) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Streamer) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}
	return otel.Tracer(tracerName)
}

// Stream runs the pipeline for home and reports events through emit. Backend
// failures become a terminal error event and Stream returns nil. An emit
// failure or cancellation of ctx ends the stream without further events and
// the cause is returned.
func (s *Streamer) Stream(ctx context.Context, home homes.Home, emit EmitFunc) error {
	if s.Generator == nil {
		return errors.New("advice: streamer has no generator")
	}
	// Durations use the wall clock; s.now only dates the prompt.
	started := time.Now()
	metrics.IncAdviceStarted()

	ctx, span := s.tracer().Start(ctx, "advice.stream", trace.WithAttributes(
		attribute.String("home.id", home.ID),
		attribute.String("llm.model", s.Model),
	))
	defer span.End()

	run := &streamRun{streamer: s, home: home, emit: emit}
	err := run.execute(ctx, s.now())

	span.SetAttributes(
		attribute.String("advice.outcome", run.outcome),
		attribute.Int("advice.recommendations", run.emitted),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case run.failure != "":
		span.SetStatus(codes.Error, run.failure)
	default:
		span.SetStatus(codes.Ok, "")
	}

	elapsed := time.Since(started)
	metrics.ObserveAdviceFinished(run.outcome, elapsed)
	fields := map[string]any{
		"home_id":         home.ID,
		"model":           s.Model,
		"outcome":         run.outcome,
		"recommendations": run.emitted,
		"skipped":         run.skipped,
		"duration_ms":     elapsed.Milliseconds(),
	}
	if run.promptHash != "" {
		fields["prompt_hash"] = run.promptHash
	}
	if run.outcome == metrics.OutcomeCompleted {
		telemetry.Info("advice.stream.complete", fields)
	} else {
		if run.failure != "" {
			fields["error"] = run.failure
		}
		telemetry.Warn("advice.stream.failed", fields)
	}
	return err
}

type streamRun struct {
	streamer   *Streamer
	home       homes.Home
	emit       EmitFunc
	outcome    string
	failure    string
	promptHash string
	emitted    int
	skipped    int
}

func (r *streamRun) execute(ctx context.Context, now time.Time) error {
	r.outcome = metrics.OutcomeCancelled
	if err := r.emit(Event{Type: EventConnected, HomeID: r.home.ID}); err != nil {
		return err
	}

	prompt := BuildPrompt(r.home, now)
	r.promptHash = util.HashText(prompt)

	genCtx, cancel := context.WithTimeout(ctx, r.streamer.timeout())
	defer cancel()

	var acc Accumulator
	var streamErr error
	for frag, err := range r.streamer.Generator.StreamGenerate(genCtx, prompt, llm.DefaultOptions()) {
		if err != nil {
			streamErr = err
			break
		}
		if acc.Add(frag) {
			break
		}
	}

	// The caller going away is not a backend failure: no terminal event.
	if err := ctx.Err(); err != nil {
		return err
	}
	if streamErr != nil {
		return r.fail(describeFailure(genCtx, streamErr))
	}
	if !acc.Done() {
		if genCtx.Err() != nil {
			return r.fail(msgTimeout, metrics.OutcomeTimeout)
		}
		return r.fail(msgIncomplete, metrics.OutcomeUnexpected)
	}

	text, _ := acc.Final()
	for i, raw := range ParseRecommendations(text) {
		rec, err := Normalize(raw, i+1)
		if err != nil {
			r.skipped++
			metrics.IncRecommendationSkipped()
			telemetry.Warn("advice.recommendation.skipped", map[string]any{
				"home_id":  r.home.ID,
				"position": i + 1,
				"error":    err,
			})
			continue
		}
		if err := r.emit(Event{Type: EventRecommendation, Recommendation: &rec}); err != nil {
			return err
		}
		r.emitted++
		metrics.IncRecommendationEmitted(string(rec.Category))
	}

	if err := r.emit(Event{Type: EventComplete}); err != nil {
		return err
	}
	r.outcome = metrics.OutcomeCompleted
	return nil
}

func (r *streamRun) fail(message, outcome string) error {
	r.outcome = outcome
	r.failure = message
	if err := r.emit(Event{Type: EventError, Error: message}); err != nil {
		r.outcome = metrics.OutcomeCancelled
		return err
	}
	return nil
}

// describeFailure maps a backend error to the client-facing message and the
// metrics outcome.
func describeFailure(genCtx context.Context, err error) (string, string) {
	var statusErr *llm.StatusError
	switch {
	case errors.As(err, &statusErr):
		payload := strings.TrimSpace(statusErr.Body)
		if payload == "" {
			payload = fmt.Sprintf("%d %s", statusErr.StatusCode, http.StatusText(statusErr.StatusCode))
		}
		return "Backend error: " + payload, metrics.OutcomeBackendError
	case errors.Is(err, llm.ErrUnreachable):
		return msgUnreachable, metrics.OutcomeUnreachable
	case errors.Is(err, llm.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(genCtx.Err(), context.DeadlineExceeded):
		return msgTimeout, metrics.OutcomeTimeout
	case errors.Is(err, llm.ErrIncomplete):
		return msgIncomplete, metrics.OutcomeUnexpected
	default:
		return "Unexpected error: " + err.Error(), metrics.OutcomeUnexpected
	}
}
