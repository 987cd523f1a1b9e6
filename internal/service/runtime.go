package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/AdamBeresnev/op-tournament/internal/service"

// RetryConfig bounds how often a transaction that lost a lock race is replayed.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultRetry = RetryConfig{
	MaxRetries:      5,
	InitialInterval: 25 * time.Millisecond,
	MaxInterval:     time.Second,
}

type Option func(*runtime)

func WithLogger(logger *slog.Logger) Option {
	return func(rt *runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(rt *runtime) { rt.metrics = m }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(rt *runtime) {
		if tracer != nil {
			rt.tracer = tracer
		}
	}
}

func WithRetry(cfg RetryConfig) Option {
	return func(rt *runtime) { rt.retry = cfg }
}

// runtime is shared by the services: the database handle plus logging, metrics,
// tracing and the transaction retry policy.
type runtime struct {
	db      *sqlx.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	retry   RetryConfig
}

func newRuntime(db *sqlx.DB, opts []Option) runtime {
	rt := runtime{
		db:     db,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		retry:  DefaultRetry,
	}
	for _, opt := range opts {
		opt(&rt)
	}
	return rt
}

// operator is where broken brackets are reported; someone has to fix them by hand.
func (rt *runtime) operator() *slog.Logger {
	return rt.logger.With("channel", "operator")
}

func (rt *runtime) txOptions() *sql.TxOptions {
	if rt.db.DriverName() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

func (rt *runtime) readTxOptions() *sql.TxOptions {
	if rt.db.DriverName() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return &sql.TxOptions{ReadOnly: true}
}

// runInTx runs fn in a fresh transaction and replays it with exponential backoff
// when the database reports lock contention. Any other error rolls back and is
// returned as is.
func (rt *runtime) runInTx(ctx context.Context, operation string, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return rt.retryTx(ctx, operation, rt.txOptions(), fn)
}

// runInReadTx runs fn in a read-only transaction so that every query sees the
// same snapshot.
func (rt *runtime) runInReadTx(ctx context.Context, operation string, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return rt.retryTx(ctx, operation, rt.readTxOptions(), fn)
}

func (rt *runtime) retryTx(ctx context.Context, operation string, opts *sql.TxOptions, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := rt.txOnce(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if store.IsConflict(err) || errors.Is(err, bracket.ErrConflict) {
			rt.metrics.RecordConflict(operation)
			rt.logger.WarnContext(ctx, "transaction conflict", "operation", operation, "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = rt.retry.InitialInterval
	policy.MaxInterval = rt.retry.MaxInterval
	policy.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, rt.retry.MaxRetries), ctx))
	if err != nil && store.IsConflict(err) {
		return fmt.Errorf("%w: %s gave up after %d attempts: %v", bracket.ErrConflict, operation, attempt, err)
	}
	return err
}

func (rt *runtime) txOnce(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	tx, err := rt.db.BeginTxx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// observe wraps a service operation with a span, metrics and error logging.
func (rt *runtime) observe(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) (err error) {
	ctx, span := rt.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operation, r)
			rt.logger.ErrorContext(ctx, "panic recovered", "operation", operation, "error", err)
		}
		rt.metrics.RecordOperation(operation, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	err = fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, bracket.ErrInvariant):
		rt.metrics.RecordInvariantViolation(operation)
		rt.operator().ErrorContext(ctx, "bracket invariant violated, transaction rolled back", "operation", operation, "error", err)
	case errors.Is(err, bracket.ErrValidation), errors.Is(err, bracket.ErrNotFound):
		rt.logger.InfoContext(ctx, "request rejected", "operation", operation, "error", err)
	case errors.Is(err, bracket.ErrConflict):
		rt.logger.WarnContext(ctx, "operation gave up on lock contention", "operation", operation, "error", err)
	default:
		rt.logger.ErrorContext(ctx, "operation failed", "operation", operation, "error", err)
	}
	return err
}

// persist writes back every row the graph touched.
func persist(ctx context.Context, tx *sqlx.Tx, brackets *store.BracketStore, g *bracket.Graph) error {
	if !g.Changed() {
		return nil
	}
	for _, m := range g.DirtyMatches() {
		if err := brackets.UpdateMatch(ctx, tx, m); err != nil {
			return err
		}
	}
	for _, p := range g.DirtyParticipants() {
		if err := brackets.UpdateParticipant(ctx, tx, p); err != nil {
			return err
		}
	}
	if g.BracketDirty() {
		if err := brackets.UpdateBracket(ctx, tx, &g.Bracket); err != nil {
			return err
		}
	}
	return nil
}

// loadGraph reads the bracket rows inside tx. Writers must hold the bracket row lock.
func loadGraph(ctx context.Context, tx *sqlx.Tx, brackets *store.BracketStore, b *bracket.Bracket) (*bracket.Graph, error) {
	participants, err := brackets.GetParticipantsTx(ctx, tx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	matches, err := brackets.GetMatchesTx(ctx, tx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	return bracket.NewGraph(*b, participants, matches)
}
