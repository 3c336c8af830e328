// Package events handles event emission for run lifecycle changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/kafka"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// EventType defines the type of event
type EventType string

const (
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunFailed    EventType = "run.failed"
)

// Emitter publishes run lifecycle events
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRunStarted emits a run.started event
func (e *Emitter) EmitRunStarted(ctx context.Context, run *models.PipelineRun) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunStarted")
	defer span.End()

	event := &kafka.RunEvent{
		EventType: string(EventTypeRunStarted),
		RunID:     run.ID,
		BBox:      run.BBox.String(),
	}

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.started event")
		return err
	}

	return nil
}

// EmitRunCompleted emits a run.completed event with the run summary
func (e *Emitter) EmitRunCompleted(ctx context.Context, run *models.PipelineRun, summary models.RunSummary) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	event := &kafka.RunEvent{
		EventType: string(EventTypeRunCompleted),
		RunID:     run.ID,
		BBox:      run.BBox.String(),
		Summary:   &summary,
	}

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.completed event")
		return err
	}

	return nil
}

// EmitRunFailed emits a run.failed event with the attributed cause
func (e *Emitter) EmitRunFailed(ctx context.Context, runID string, cause string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunFailed")
	defer span.End()

	event := &kafka.RunEvent{
		EventType: string(EventTypeRunFailed),
		RunID:     runID,
		Error:     cause,
	}

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.failed event")
		return err
	}

	return nil
}
