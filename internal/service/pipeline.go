// Package service provides the ingestion pipeline that turns conversation
// records into stored datasets.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/internal/extract"
	"github.com/capitalize-ai/vcon-datasets/internal/model"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
	"github.com/capitalize-ai/vcon-datasets/pkg/metrics"
	"github.com/capitalize-ai/vcon-datasets/pkg/tracing"
)

// State is a step of a pipeline run.
type State string

const (
	StateReceived  State = "received"
	StateValidated State = "validated"
	StateExtracted State = "extracted"
	StateWritten   State = "written"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Writer persists a dataset under a logical name.
type Writer interface {
	Write(dataset *model.ConversationDataset, name string) error
}

// Notifier is told about every dataset that reached storage.
type Notifier interface {
	NotifyDatasetWritten(ctx context.Context, event *model.DatasetEvent) error
}

// Recorder keeps the outcome of each run.
type Recorder interface {
	Record(outcome model.IngestionOutcome)
}

// Record is one conversation record entering the pipeline.
type Record struct {
	Name   string
	Source model.Source
	Data   []byte
}

// Pipeline runs Received → Validated → Extracted → Written → Done for each record.
// A Pipeline holds no per-run state and may be shared by all intake sources.
type Pipeline struct {
	extractor extract.Extractor
	writer    Writer
	notifier  Notifier
	recorders []Recorder
	logger    *logger.Logger
	tracer    trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier publishes an event after every successful write.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithRecorder records the outcome of every run. It may be given more than once.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorders = append(p.recorders, r)
		}
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(extractor extract.Extractor, writer Writer, log *logger.Logger, opts ...Option) (*Pipeline, error) {
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	if log == nil {
		log = logger.NewNop()
	}

	p := &Pipeline{
		extractor: extractor,
		writer:    writer,
		logger:    log.Named("pipeline"),
		tracer:    tracing.Tracer("github.com/capitalize-ai/vcon-datasets/internal/service"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ValidateRecord checks that data is UTF-8 text holding syntactically valid JSON
// and returns it as a string. Validating the same data again gives the same result.
func ValidateRecord(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: record is not valid UTF-8", ErrInvalidInput)
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("%w: record is not valid JSON", ErrInvalidInput)
	}
	return string(data), nil
}

// Run takes one record through the pipeline and returns the stored dataset.
// On failure the returned error is a *StageError wrapping ErrInvalidInput,
// ErrExtraction or ErrWrite; the run is abandoned and nothing is retried.
func (p *Pipeline) Run(ctx context.Context, rec Record) (*model.ConversationDataset, error) {
	start := time.Now()
	log := p.logger.With(
		zap.String("name", rec.Name),
		zap.String("source", string(rec.Source)),
	)

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("ingest.name", rec.Name),
		attribute.String("ingest.source", string(rec.Source)),
		attribute.Int("ingest.bytes", len(rec.Data)),
	))
	defer span.End()

	state := StateReceived
	advance := func(next State) {
		log.Debug("pipeline transition", zap.String("from", string(state)), zap.String("to", string(next)))
		span.AddEvent(string(next))
		state = next
	}
	fail := func(target State, err error) (*model.ConversationDataset, error) {
		stageErr := &StageError{Stage: target, Err: err}
		span.AddEvent(string(StateFailed))
		span.RecordError(stageErr)
		span.SetStatus(codes.Error, ErrorCode(err))
		metrics.RecordPipelineRun(string(rec.Source), ErrorCode(err))
		log.Error("ingestion failed",
			zap.String("stage", string(target)),
			zap.String("code", ErrorCode(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		p.record(model.IngestionOutcome{
			Name:   rec.Name,
			Source: rec.Source,
			Status: model.OutcomeFailed,
			Stage:  string(target),
			Code:   ErrorCode(err),
			Error:  err.Error(),
		})
		return nil, stageErr
	}

	text, err := ValidateRecord(rec.Data)
	if err != nil {
		return fail(StateValidated, err)
	}
	advance(StateValidated)

	dataset, err := p.extractor.Extract(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrExtraction) {
			err = fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		return fail(StateExtracted, err)
	}
	if dataset == nil {
		return fail(StateExtracted, fmt.Errorf("%w: extractor returned no dataset", ErrExtraction))
	}
	advance(StateExtracted)

	if err := p.writer.Write(dataset, rec.Name); err != nil {
		if !errors.Is(err, ErrWrite) {
			err = fmt.Errorf("%w: %w", ErrWrite, err)
		}
		return fail(StateWritten, err)
	}
	advance(StateWritten)
	metrics.DatasetsWrittenTotal.Inc()

	p.notify(ctx, log, rec, dataset)

	advance(StateDone)
	metrics.RecordPipelineRun(string(rec.Source), "success")
	span.SetStatus(codes.Ok, "")
	p.record(model.IngestionOutcome{
		Name:       rec.Name,
		Source:     rec.Source,
		Status:     model.OutcomeSucceeded,
		Stage:      string(StateDone),
		DatasetURL: DatasetURL(rec.Name),
		Pairs:      len(dataset.Conversation),
	})
	log.Info("dataset written",
		zap.Int("pairs", len(dataset.Conversation)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return dataset, nil
}

// DatasetURL is the retrieval path of a stored dataset.
func DatasetURL(name string) string {
	return "/datasets/" + name
}

func (p *Pipeline) notify(ctx context.Context, log *logger.Logger, rec Record, dataset *model.ConversationDataset) {
	if p.notifier == nil {
		return
	}

	event := &model.DatasetEvent{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Type:        model.EventTypeDatasetWritten,
		Name:        rec.Name,
		Source:      rec.Source,
		DatasetUUID: dataset.UUID,
		Pairs:       len(dataset.Conversation),
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.notifier.NotifyDatasetWritten(ctx, event); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		log.Warn("failed to publish dataset event", zap.Error(err))
		return
	}
	metrics.NotificationsTotal.WithLabelValues("success").Inc()
}

func (p *Pipeline) record(outcome model.IngestionOutcome) {
	if len(p.recorders) == 0 {
		return
	}
	outcome.CompletedAt = time.Now().UTC()
	for _, r := range p.recorders {
		r.Record(outcome)
	}
}
