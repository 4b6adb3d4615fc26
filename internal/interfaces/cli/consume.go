package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

type computeFunc func(ctx context.Context, input, output string) (*computeReport, error)

type runOutputPublisher interface {
	PublishRunOutput(ctx context.Context, summary *reaction.RunSummary, output string) error
}

// newRunRequestHandler computes one run per run-requested event and
// announces the result. Any error is returned so the consumer retries and
// finally dead-letters the message; recomputing an input overwrites the
// same output.
func newRunRequestHandler(compute computeFunc, pub runOutputPublisher, logger logging.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		env, err := kafka.MessageToEventEnvelope(msg)
		if err != nil {
			return err
		}
		if env.EventType != kafka.EventRunRequested {
			logger.Warn("ignoring unexpected event",
				logging.String("event_type", env.EventType),
				logging.String("event_id", env.EventID))
			return nil
		}

		var req kafka.RunRequestedPayload
		if err := env.DecodePayload(&req); err != nil {
			return err
		}
		if req.Input == "" {
			return errors.InvalidParam("run request has no input").WithDetail(env.EventID)
		}

		report, err := compute(ctx, req.Input, req.Output)
		if err != nil {
			return err
		}
		logger.Info("run request completed",
			logging.String("event_id", env.EventID),
			logging.String(logging.FieldRunID, report.RunID),
			logging.String("output", report.Output))

		if pub == nil {
			return nil
		}
		return pub.PublishRunOutput(ctx, report.summary, report.Output)
	}
}

func newConsumeCmd() *cobra.Command {
	var opts pipelineOptions

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Serve run requests from kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			k := cc.Config.Messaging.Kafka
			if !k.Enabled {
				return errors.New(errors.ErrCodeFeatureDisabled, "consume requires messaging.kafka.enabled")
			}
			ctx := cmd.Context()

			p, err := buildPipeline(ctx, cc, pipelineOptions{Postgres: opts.Postgres})
			if err != nil {
				return err
			}
			defer p.Close(ctx)
			if err := watchConfig(cc, p); err != nil {
				return err
			}

			pub, err := p.buildRunPublisher(ctx)
			if err != nil {
				return err
			}

			consumer, err := kafka.NewConsumer(k.ConsumerConfig(), cc.Logger)
			if err != nil {
				return err
			}
			consumer.Subscribe(k.Topics().RunRequested, newRunRequestHandler(p.compute, pub, cc.Logger))
			if err := consumer.Start(ctx); err != nil {
				_ = consumer.Close()
				return err
			}

			<-ctx.Done()
			cc.Logger.Info("shutting down consumer")
			return consumer.Close()
		},
	}

	cmd.Flags().BoolVar(&opts.Postgres, "postgres", false, "also write rows to the postgres feature sink")
	return cmd
}
