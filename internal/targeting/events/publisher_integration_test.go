//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"screening/internal/platform/config"
	"screening/internal/platform/kafka"
	"screening/internal/targeting/events"
	"screening/internal/targeting/models"
	"screening/pkg/testutil/containers"
)

const testTopic = "invitation-batches-test"

type KafkaPublisherSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	client   *kgo.Client
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	client, err := kafka.New(config.KafkaConfig{Enabled: true, Brokers: []string{s.redpanda.Broker}, Topic: testTopic})
	s.Require().NoError(err)
	s.client = client
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(kafka.EnsureTopic(ctx, client, testTopic, 1, 1))
	s.Require().NoError(kafka.EnsureTopic(ctx, client, testTopic, 1, 1), "second create is a no-op")
}

func (s *KafkaPublisherSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *KafkaPublisherSuite) TestPublishBatchIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	publisher, err := events.NewKafkaPublisher(s.client, testTopic)
	s.Require().NoError(err)

	event := models.BatchCommittedEvent{
		BatchID:     "IB-1",
		ClinicID:    "C1",
		ClinicName:  "Riverside",
		PersonIDs:   []string{"p1", "p2"},
		CommittedAt: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(publisher.PublishBatch(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var record *kgo.Record
	for record == nil {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			if record == nil {
				record = r
			}
		})
	}

	s.Equal("C1", string(record.Key))
	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal(models.EventTypeBatchCommitted, headers["event_type"])
	s.NotEmpty(headers["message_id"])

	var decoded models.BatchCommittedEvent
	s.Require().NoError(json.Unmarshal(record.Value, &decoded))
	s.Equal(event, decoded)
}
