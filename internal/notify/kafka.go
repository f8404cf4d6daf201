package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter はkafka.Writerのうち使用するメソッド。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher はステータス変更イベントをKafkaトピックへJSONで発行する。
// キーはレコードIDで、同一レコードのイベント順序を保つ。
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher はKafkaPublisherを生成する。
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Name はチャネル名を返す。
func (p *KafkaPublisher) Name() string { return "kafka" }

// StatusChanged はイベントを発行する。
func (p *KafkaPublisher) StatusChanged(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.RecordID),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close はライターを閉じ、未送信のメッセージをフラッシュする。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
