package repository

import (
	"context"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	pkgkafka "StockRank/pkg/kafka"
)

type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaRankingPublisher sends each ranking row as a JSON message keyed by ticker.
type KafkaRankingPublisher struct {
	producer batchProducer
	topic    string
}

func NewKafkaRankingPublisher(producer *pkgkafka.Producer, topic string) *KafkaRankingPublisher {
	return &KafkaRankingPublisher{producer: producer, topic: topic}
}

func (p *KafkaRankingPublisher) PublishRankings(ctx context.Context, rows []models.RankingRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(r.Ticker), Value: r})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaRankingPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.RankingPublisher = (*KafkaRankingPublisher)(nil)
