// Package events publishes relayed history events to Kafka and ClickHouse
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	perr "arledger/internal/platform/errors"
	hdom "arledger/internal/services/history/domain"
)

// producer is the slice of *kgo.Client the sink uses
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaOptions configures the Kafka sink
type KafkaOptions struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// Kafka writes one record per event keyed by invoice id so an invoice's events stay ordered in a partition
type Kafka struct {
	client  producer
	topic   string
	timeout time.Duration
}

var _ hdom.Sink = (*Kafka)(nil)

// NewKafka connects lazily, brokers and topic are required
func NewKafka(o KafkaOptions) (*Kafka, error) {
	if len(o.Brokers) == 0 || o.Topic == "" {
		return nil, perr.InvalidArgf("events: kafka brokers and topic are required")
	}
	if o.ClientID == "" {
		o.ClientID = "arledger"
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(o.Brokers...),
		kgo.ClientID(o.ClientID),
		kgo.DefaultProduceTopic(o.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "events: kafka client")
	}
	return &Kafka{client: cl, topic: o.Topic, timeout: o.Timeout}, nil
}

// Name labels the sink in logs and metrics
func (k *Kafka) Name() string { return "kafka" }

// Publish produces every event and waits for all acks
func (k *Kafka) Publish(ctx context.Context, evs []hdom.Event) error {
	if len(evs) == 0 {
		return nil
	}
	recs := make([]*kgo.Record, 0, len(evs))
	for _, e := range evs {
		r, err := record(k.topic, e)
		if err != nil {
			return err
		}
		recs = append(recs, r)
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.client.ProduceSync(ctx, recs...).FirstErr(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "events: produce to %s", k.topic)
	}
	return nil
}

// Close flushes and closes the client
func (k *Kafka) Close() error {
	k.client.Close()
	return nil
}

func record(topic string, e hdom.Event) (*kgo.Record, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "events: encode event %d", e.ID)
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(strconv.FormatInt(e.InvoiceID, 10)),
		Value:     b,
		Timestamp: e.CreatedAt,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(strconv.FormatInt(e.ID, 10))},
		},
	}, nil
}
