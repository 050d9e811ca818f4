// Package service runs the long-lived annotation worker: a NATS
// request/reply subscriber that treats each message as one annotation
// request and replies with the result envelope. Per-backend failures never
// surface in a reply; only a malformed payload produces an error response.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/semtag/aggregate"
	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/cache"
)

// DefaultSubject is the request subject when none is configured.
const DefaultSubject = "semtag.annotate"

const queueGroup = "semtag"

// AggregatorProvider returns the aggregator for the current resource
// generation. With hot reload enabled this changes between requests;
// otherwise it always returns the same instance.
type AggregatorProvider func() *aggregate.Aggregator

// Service is the NATS annotation worker.
type Service struct {
	conn     *nats.Conn
	subject  string
	provider AggregatorProvider
	cache    *cache.Cache
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache attaches a result cache consulted before aggregation.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates the annotation worker.
func New(conn *nats.Conn, subject string, provider AggregatorProvider, opts ...Option) (*Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("service: NATS connection is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("service: aggregator provider is required")
	}
	if subject == "" {
		subject = DefaultSubject
	}

	s := &Service{
		conn:     conn,
		subject:  subject,
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run subscribes and serves until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.conn.QueueSubscribe(s.subject, queueGroup, func(msg *nats.Msg) {
		if err := msg.Respond(s.handle(ctx, msg.Data)); err != nil {
			s.logger.Warn("failed to send reply", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}

	s.logger.Info("annotation service ready", slog.String("subject", s.subject))
	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		s.logger.Warn("drain failed", slog.String("error", err.Error()))
	}
	return ctx.Err()
}

// errorResponse is the reply for a request that could not be served at all.
type errorResponse struct {
	Error string `json:"error"`
}

// handle serves one request payload and returns the reply bytes.
func (s *Service) handle(ctx context.Context, data []byte) []byte {
	req, err := annotation.ParseRequest(data)
	if err != nil {
		s.logger.Warn("rejecting request", slog.String("error", err.Error()))
		return mustMarshal(errorResponse{Error: err.Error()})
	}

	agg := s.provider()

	var key string
	if s.cache != nil {
		key = cache.Key(req.Text, agg.Tags())
		if res, hit := s.cache.Get(ctx, key); hit {
			return mustMarshal(res)
		}
	}

	res := agg.Annotate(ctx, req.Text)
	if s.cache != nil {
		s.cache.Set(ctx, key, res)
	}
	return mustMarshal(res)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Result and errorResponse are plain data types; this cannot fail.
		return []byte(`{"error":"internal encoding failure"}`)
	}
	return data
}
