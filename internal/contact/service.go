package contact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/consulting-site/internal/events"
	"github.com/JakeFAU/consulting-site/internal/mailer"
	"github.com/JakeFAU/consulting-site/internal/ratelimit"
	"github.com/JakeFAU/consulting-site/internal/turnstile"
)

const tracerName = "github.com/JakeFAU/consulting-site/internal/contact"

// Verifier checks a challenge token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (turnstile.Outcome, error)
}

// Dispatcher delivers the notification email.
type Dispatcher interface {
	CheckConfig() error
	Send(ctx context.Context, msg mailer.Message) (mailer.Result, error)
}

// Clock supplies the receipt timestamp.
type Clock interface {
	Now() time.Time
}

// IDGenerator names submissions for logs and events.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Deps wires a Service. Limiter, Verifier and Dispatcher are required.
type Deps struct {
	Limiter    ratelimit.Limiter
	Verifier   Verifier
	Dispatcher Dispatcher
	Clock      Clock
	IDs        IDGenerator
	Events     events.Emitter
	Logger     *zap.Logger
	Tracer     trace.Tracer
}

// Service runs the submission pipeline.
type Service struct {
	limiter    ratelimit.Limiter
	verifier   Verifier
	dispatcher Dispatcher
	clock      Clock
	ids        IDGenerator
	events     events.Emitter
	logger     *zap.Logger
	tracer     trace.Tracer
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

type v7IDs struct{}

func (v7IDs) NewRawID() (uuid.UUID, error) { return uuid.NewV7() }

// NewService validates deps and fills optional collaborators with defaults.
func NewService(deps Deps) (*Service, error) {
	if deps.Limiter == nil {
		return nil, errors.New("contact service: limiter is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("contact service: verifier is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("contact service: dispatcher is required")
	}
	s := &Service{
		limiter:    deps.Limiter,
		verifier:   deps.Verifier,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		ids:        deps.IDs,
		events:     deps.Events,
		logger:     deps.Logger,
		tracer:     deps.Tracer,
	}
	if s.clock == nil {
		s.clock = utcClock{}
	}
	if s.ids == nil {
		s.ids = v7IDs{}
	}
	if s.events == nil {
		s.events = events.Discard{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("contact")
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s, nil
}

// Submit processes one raw request body from clientIP and always returns a
// terminal Outcome. Panics inside the pipeline become StateUnexpectedError.
func (s *Service) Submit(ctx context.Context, body io.Reader, clientIP string) (out Outcome) {
	start := s.clock.Now()
	id, err := s.ids.NewRawID()
	if err != nil {
		s.logger.Warn("submission id unavailable", zap.Error(err))
	}

	ctx, span := s.tracer.Start(ctx, "contact.Submit", trace.WithAttributes(
		attribute.String("contact.client_ip", clientIP),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			out = unexpected(fmt.Errorf("panic: %v", r), panicMessage(r))
		}
		if id != uuid.Nil {
			out.ID = id.String()
		}
		s.finish(span, id, clientIP, start, out)
	}()

	return s.run(ctx, body, clientIP, start)
}

func (s *Service) run(ctx context.Context, body io.Reader, clientIP string, received time.Time) Outcome {
	limited, err := s.limiter.CheckAndRecord(ctx, clientIP)
	if err != nil {
		// Fail open.
		s.logger.Warn("rate limiter unavailable, admitting request", zap.String("client_ip", clientIP), zap.Error(err))
	}
	if limited {
		return failure(StateRateLimited, ClientError, http.StatusTooManyRequests, CodeRateLimited, nil)
	}

	sub, err := Decode(body)
	if err != nil {
		return failure(StateInvalidPayload, ClientError, http.StatusBadRequest, CodeInvalidJSON, err)
	}
	if err := sub.Validate(); err != nil {
		return failure(StateInvalidPayload, ClientError, http.StatusBadRequest, CodeMissingFields, err)
	}

	if sub.IsSpam() {
		return dropped()
	}
	if sub.TurnstileToken == "" {
		return failure(StateMissingToken, ClientError, http.StatusBadRequest, CodeMissingToken, nil)
	}

	if out, ok := s.verify(ctx, sub.TurnstileToken, clientIP); !ok {
		return out
	}

	if err := s.dispatcher.CheckConfig(); err != nil {
		return failure(StateMisconfigured, ConfigurationError, http.StatusInternalServerError, CodeMissingEmailEnv, err)
	}
	return s.deliver(ctx, sub, clientIP, received)
}

func (s *Service) verify(ctx context.Context, token, clientIP string) (Outcome, bool) {
	ctx, span := s.tracer.Start(ctx, "contact.verify")
	defer span.End()

	_, err := s.verifier.Verify(ctx, token, clientIP)
	if err == nil {
		return Outcome{}, true
	}
	span.RecordError(err)

	var rejected *turnstile.RejectedError
	var transport *turnstile.TransportError
	switch {
	case errors.Is(err, turnstile.ErrMissingSecret):
		return failure(StateVerificationFailed, ConfigurationError, http.StatusBadRequest, CodeMissingSecret, err), false
	case errors.As(err, &rejected):
		out := failure(StateVerificationFailed, UpstreamError, http.StatusBadRequest,
			CodeTurnstileFailed+":"+rejected.Reason(), err)
		out.Detail = rejected.Reason()
		return out, false
	case errors.As(err, &transport):
		return failure(StateVerificationFailed, UpstreamError, http.StatusBadRequest, CodeTurnstileHTTP, err), false
	default:
		return unexpected(err, err.Error()), false
	}
}

func (s *Service) deliver(ctx context.Context, sub Submission, clientIP string, received time.Time) Outcome {
	ctx, span := s.tracer.Start(ctx, "contact.deliver")
	defer span.End()

	res, err := s.dispatcher.Send(ctx, ComposeMessage(sub, clientIP, received))
	if err == nil {
		return delivered(res.MessageID)
	}
	span.RecordError(err)

	var delivery *mailer.DeliveryError
	switch {
	case errors.Is(err, mailer.ErrMissingConfig):
		return failure(StateMisconfigured, ConfigurationError, http.StatusInternalServerError, CodeMissingEmailEnv, err)
	case errors.As(err, &delivery):
		return failure(StateDeliveryFailed, UpstreamError, http.StatusBadGateway, CodeResendError, err)
	default:
		return unexpected(err, err.Error())
	}
}

func (s *Service) finish(span trace.Span, id uuid.UUID, clientIP string, start time.Time, out Outcome) {
	dur := s.clock.Now().Sub(start)
	if dur < 0 {
		dur = 0
	}

	span.SetAttributes(
		attribute.String("contact.state", string(out.State)),
		attribute.Int("http.status_code", out.Status),
	)
	if out.Err != nil && out.Class != ClientError {
		span.SetStatus(codes.Error, string(out.Class))
	}

	fields := []zap.Field{
		zap.String("submission_id", out.ID),
		zap.String("state", string(out.State)),
		zap.String("class", string(out.Class)),
		zap.Int("status", out.Status),
		zap.String("client_ip", clientIP),
		zap.Duration("duration", dur),
	}
	if out.Detail != "" {
		fields = append(fields, zap.String("detail", out.Detail))
	}
	if out.Provider != "" {
		fields = append(fields, zap.String("provider_id", out.Provider))
	}
	if out.Err != nil {
		fields = append(fields, zap.Error(out.Err))
	}
	switch out.Class {
	case ConfigurationError, UnexpectedError:
		s.logger.Error("contact submission failed", fields...)
	case UpstreamError:
		s.logger.Warn("contact submission failed", fields...)
	default:
		s.logger.Info("contact submission finished", fields...)
	}

	if id == uuid.Nil {
		return
	}
	s.events.Emit(events.Event{
		ID:         [16]byte(id),
		TS:         start.Add(dur).UTC(),
		State:      string(out.State),
		Class:      string(out.Class),
		Status:     out.Status,
		ClientIP:   clientIP,
		ProviderID: out.Provider,
		Dur:        dur,
		Note:       out.Detail,
	})
}

func unexpected(err error, msg string) Outcome {
	return failure(StateUnexpectedError, UnexpectedError, http.StatusInternalServerError,
		CodeServerErrorPrefix+":"+msg, err)
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(r)
}
