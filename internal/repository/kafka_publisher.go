package repository

import (
	"context"

	"github.com/ansh-info/StockPulse/internal/domain/models"
	pkgkafka "github.com/ansh-info/StockPulse/pkg/kafka"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
	"github.com/ansh-info/StockPulse/pkg/util"
)

// wireTick is the JSON payload put on the queue. Timestamps travel as
// wire-format strings; the loader parses them back.
type wireTick struct {
	Symbol    string  `json:"symbol"`
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// KafkaPublisher pushes ticks onto the queue, keyed by symbol so each
// symbol's messages land on one partition in order.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	log      *applogger.Logger
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string, log *applogger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      log.With(applogger.String("component", "kafka_publisher")),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, t models.Tick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), toWire(t))
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, ticks []models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(ticks))
	for _, t := range ticks {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(t.Symbol),
			Value: toWire(t),
		})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return err
	}
	p.log.Debug("published batch",
		applogger.String("topic", p.topic),
		applogger.Int("count", len(ticks)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func toWire(t models.Tick) wireTick {
	return wireTick{
		Symbol:    t.Symbol,
		Timestamp: util.FormatWire(t.Timestamp),
		Open:      t.Open,
		High:      t.High,
		Low:       t.Low,
		Close:     t.Close,
		Volume:    t.Volume,
	}
}
