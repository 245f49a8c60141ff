// Package events publishes company change events to the broker consumed by
// the external search index. Publication is best-effort relative to the
// committed store state: a failed publish leaves the index stale until the
// next successful publish for that entity, never rolls anything back.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

// EventType names the broker topic the event is published to.
type EventType string

const (
	CompanyCreated    EventType = "createCompany"
	CompanyModified   EventType = "modifyCompany"
	CompaniesImported EventType = "addBulkCompanies"
)

// Event is the published payload: a cycle-free company snapshot tagged with
// its change type.
type Event struct {
	Type    EventType        `json:"type"`
	Company *CompanySnapshot `json:"company"`
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	queueSize    = 1000
	writeTimeout = 10 * time.Second
	maxRetries   = 3
)

type envelope struct {
	event  Event
	result chan error
}

type Producer struct {
	writer    KafkaWriter
	events    chan envelope
	logger    *zap.Logger
	closeChan chan struct{}
}

func NewProducer(brokers []string, logger *zap.Logger) (*Producer, error) {
	// Create topics if they don't exist
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	topicConfigs := make([]kafka.TopicConfig, 0, 3)
	for _, topic := range []EventType{CompanyCreated, CompanyModified, CompaniesImported} {
		topicConfigs = append(topicConfigs, kafka.TopicConfig{
			Topic:             string(topic),
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
	}

	if err := conn.CreateTopics(topicConfigs...); err != nil {
		logger.Warn("failed to create topics (may already exist)", zap.Error(err))
	}

	p := &Producer{
		// Topic is set per message; each event type has its own topic.
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.Hash{},
		},
		events:    make(chan envelope, queueSize),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}

	go p.eventLoop()
	return p, nil
}

// Produce enqueues an event and returns a channel carrying the publish
// outcome. Callers may await it (bulk import does) or let it drain; either
// way a failure is logged with the entity id.
func (p *Producer) Produce(eventType EventType, company *CompanySnapshot) <-chan error {
	result := make(chan error, 1)
	select {
	case p.events <- envelope{event: Event{Type: eventType, Company: company}, result: result}:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("company_id", company.ID),
		)
		result <- fmt.Errorf("%w: producer queue full", e.ErrPublishFailed)
	}
	return result
}

func (p *Producer) eventLoop() {
	for {
		select {
		case env := <-p.events:
			env.result <- p.sendEvent(context.Background(), env.event)
		case <-p.closeChan:
			return
		}
	}
}

// sendEvent writes the event with a bounded timeout and capped exponential
// backoff. Messages are keyed by entity id so a per-key-ordered broker
// preserves consumer-side ordering per entity.
func (p *Producer) sendEvent(ctx context.Context, event Event) error {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("company_id", event.Company.ID),
		)
		return fmt.Errorf("%w: serialize: %v", e.ErrPublishFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	write := func() error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Topic: string(event.Type),
			Key:   []byte(event.Company.ID),
			Value: value,
		})
	}
	err = backoff.Retry(write, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx))
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("company_id", event.Company.ID),
		)
		return fmt.Errorf("%w: %v", e.ErrPublishFailed, err)
	}
	return nil
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
