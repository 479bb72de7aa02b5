package piecetree

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/piecetree/pkg/engineconfig"
	"github.com/Sumatoshi-tech/piecetree/pkg/telemetry"
)

const tracerName = "piecetree/mutation"

// NewEngineFromConfig builds an engine the way NewEngine does, then applies
// cfg.Engine.PropagateChangeErrors (the only engine tunable it reads) and
// attaches providers' tracer/logger so every
// Ctx-suffixed call below is observable. Passing a zero telemetry.Providers
// is fine: Tracer defaults to a no-op tracer and Logger to slog.Default().
func NewEngineFromConfig(initialText string, cfg engineconfig.Config, providers telemetry.Providers) *Engine {
	e := NewEngine(initialText)
	e.PropagateChangeErrors = cfg.Engine.PropagateChangeErrors

	e.tracer = providers.Tracer
	if e.tracer == nil {
		e.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}

	e.logger = providers.Logger
	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

func (e *Engine) tracerOrNoop() trace.Tracer {
	if e.tracer != nil {
		return e.tracer
	}

	return nooptrace.NewTracerProvider().Tracer(tracerName)
}

func (e *Engine) loggerOrDefault() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}

	return slog.Default()
}

// InsertCtx wraps Insert in a span and logs the call's outcome.
func (e *Engine) InsertCtx(ctx context.Context, offset int, text string, meta *OrderedMap) ([]Diff, error) {
	ctx, span := e.tracerOrNoop().Start(ctx, "piecetree.Insert")
	defer span.End()

	diffs, err := e.Insert(offset, text, meta)
	if err != nil {
		telemetry.RecordSpanError(span, err, telemetry.ErrTypeValidation)
		e.loggerOrDefault().ErrorContext(ctx, "insert rejected", "offset", offset, "error", err)

		return diffs, err
	}

	e.loggerOrDefault().DebugContext(ctx, "insert applied",
		"offset", offset, "size", humanize.Bytes(uint64(len(text))), "document_size", humanize.Bytes(uint64(e.GetLength())))

	return diffs, nil
}

// DeleteCtx wraps Delete in a span and logs the call's outcome.
func (e *Engine) DeleteCtx(ctx context.Context, offset, length int) []Diff {
	ctx, span := e.tracerOrNoop().Start(ctx, "piecetree.Delete")
	defer span.End()

	diffs := e.Delete(offset, length)
	e.loggerOrDefault().DebugContext(ctx, "delete applied",
		"offset", offset, "size", humanize.Bytes(uint64(length)), "document_size", humanize.Bytes(uint64(e.GetLength())))

	return diffs
}

// FormatCtx wraps Format in a span and logs the call's outcome.
func (e *Engine) FormatCtx(ctx context.Context, offset, length int, meta *OrderedMap, filter TypeFilter) []Diff {
	ctx, span := e.tracerOrNoop().Start(ctx, "piecetree.Format")
	defer span.End()

	diffs := e.Format(offset, length, meta, filter)
	e.loggerOrDefault().DebugContext(ctx, "format applied", "offset", offset, "length", length)

	return diffs
}

// UndoCtx wraps Undo in a span and logs the call's outcome.
func (e *Engine) UndoCtx(ctx context.Context) []Diff {
	ctx, span := e.tracerOrNoop().Start(ctx, "piecetree.Undo")
	defer span.End()

	diffs := e.Undo()
	e.loggerOrDefault().DebugContext(ctx, "undo applied", "diffs", len(diffs))

	return diffs
}

// RedoCtx wraps Redo in a span and logs the call's outcome.
func (e *Engine) RedoCtx(ctx context.Context) []Diff {
	ctx, span := e.tracerOrNoop().Start(ctx, "piecetree.Redo")
	defer span.End()

	diffs := e.Redo()
	e.loggerOrDefault().DebugContext(ctx, "redo applied", "diffs", len(diffs))

	return diffs
}
