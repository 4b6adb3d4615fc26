package kafka

import (
	"context"

	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

// RunPublisher announces finished runs on the run-completed topic, keyed by
// run id.
type RunPublisher struct {
	producer Publisher
	topic    string
	source   string
	logger   logging.Logger
}

func NewRunPublisher(producer Publisher, topics Topics, source string, logger logging.Logger) *RunPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if source == "" {
		source = "rxntd"
	}
	return &RunPublisher{producer: producer, topic: topics.RunCompleted, source: source, logger: logger}
}

// PublishRun sends summary as a run.completed event.
func (p *RunPublisher) PublishRun(ctx context.Context, summary *reaction.RunSummary) error {
	return p.PublishRunOutput(ctx, summary, "")
}

// PublishRunOutput is PublishRun with the written output location attached.
func (p *RunPublisher) PublishRunOutput(ctx context.Context, summary *reaction.RunSummary, output string) error {
	if summary == nil || summary.RunID == "" {
		return errors.InvalidParam("run summary requires a run id")
	}
	env, err := NewEventEnvelope(EventRunCompleted, p.source, RunCompletedPayload{Summary: summary, Output: output})
	if err != nil {
		return err
	}
	env.TraceID = summary.RunID
	msg, err := env.ToMessage(p.topic, summary.RunID)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("Run published",
		logging.String(logging.FieldRunID, summary.RunID),
		logging.String("topic", p.topic))
	return nil
}

// Close releases the underlying producer.
func (p *RunPublisher) Close() error {
	return p.producer.Close()
}
