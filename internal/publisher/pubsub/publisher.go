// Package pubsub publishes ingestion-completed events to GCP Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

func New(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{
		client: client,
		topic:  client.Topic(topicID),
		logger: logger.Named("pubsub"),
	}, nil
}

// Publish sends one event and waits for the server ack.
func (p *Publisher) Publish(ctx context.Context, ev pipeline.IngestionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal ingestion event: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"scope_id":  ev.ScopeID,
			"namespace": ev.Namespace,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish ingestion event: %w", err)
	}
	p.logger.Debug("published ingestion event",
		zap.String("scope", ev.ScopeID),
		zap.String("source", ev.SourceURL),
		zap.Int("records", ev.Records))
	return nil
}

func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
