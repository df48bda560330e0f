// Package kafka builds the franz-go client used for event publication.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"screening/internal/platform/config"
)

// New creates a producer client for cfg. Returns nil, nil when Kafka is disabled.
func New(cfg config.KafkaConfig, opts ...kgo.Opt) (*kgo.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka enabled but no brokers configured")
	}
	all := append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)
	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicas int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, replicas, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
