package repository

import (
	"context"

	"FxPilot/internal/domain/models"
	"FxPilot/pkg/kafka"
)

// KafkaTradePublisher mirrors executed trades to a Kafka topic, one message
// per trade keyed by pair so a partition sees each instrument in order.
type KafkaTradePublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaTradePublisher(producer *kafka.Producer, topic string) *KafkaTradePublisher {
	return &KafkaTradePublisher{producer: producer, topic: topic}
}

func (p *KafkaTradePublisher) PublishTrades(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(trades))
	for _, tr := range trades {
		msgs = append(msgs, kafka.Message{Key: []byte(tr.Pair), Value: tr})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaTradePublisher) Close() error {
	return p.producer.Close()
}
