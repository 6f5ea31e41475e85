package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Evgen-Mutagen/finledger/internal/events"
)

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher writes to topic on brokers. Messages are keyed by user id so that
// one user's movements land on one partition in commit order.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes the events in one batch and waits for the brokers to acknowledge
// it or for ctx to end.
func (p *Publisher) Publish(ctx context.Context, evs ...events.MovementRecorded) error {
	if len(evs) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(evs))
	for _, event := range evs {
		msg, err := encodeMessage(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d movement(s) starting at %s: %w", len(evs), evs[0].MovementID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encodeMessage(event events.MovementRecorded) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode movement %s: %w", event.MovementID, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(events.TopicMovementRecorded)},
		},
	}, nil
}

var _ events.Publisher = (*Publisher)(nil)
