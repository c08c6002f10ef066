package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/job"
)

// PubSubHandler turns Pub/Sub messages into scheduled heatmap jobs, so
// upstream systems (cron triggers, data import pipelines) can request
// computation without talking to the HTTP API.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	scheduler        *job.Scheduler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Scheduler        *job.Scheduler
	Logger           zerolog.Logger
}

// ComputeMessage is a heatmap computation request. Either City or Bounds
// must be set; City wins when both are.
type ComputeMessage struct {
	JobType  string      `json:"job_type"`
	City     string      `json:"city,omitempty"`
	Bounds   *geo.Bounds `json:"bounds,omitempty"`
	GridStep float64     `json:"grid_step,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		scheduler:        cfg.Scheduler,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var computeMsg ComputeMessage
	if err := json.Unmarshal(msg.Data, &computeMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	if computeMsg.JobType != string(job.TypeHeatmapCompute) {
		logger.Warn().Str("job_type", computeMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	result, err := h.schedule(ctx, computeMsg)
	if err != nil {
		logger.Error().Err(err).Msg("scheduling heatmap job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_id", result.JobID).
		Str("city", computeMsg.City).
		Bool("is_new", result.IsNew).
		Msg("heatmap job scheduled from pubsub")

	msg.Ack()
}

func (h *PubSubHandler) schedule(ctx context.Context, msg ComputeMessage) (*job.ScheduleResult, error) {
	if msg.City != "" {
		return h.scheduler.ScheduleCity(ctx, msg.City, msg.GridStep)
	}
	if msg.Bounds != nil {
		return h.scheduler.ScheduleBounds(ctx, *msg.Bounds, msg.GridStep)
	}
	return nil, fmt.Errorf("compute message needs a city or bounds")
}
