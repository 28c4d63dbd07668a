// Package mq 提供 Kafka producer 通用实现，JSON 序列化，带重试与事件类型头
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/quantpricing/pkg/logger"
)

// EventTypeHeader 消息头中的事件类型键
const EventTypeHeader = "event_type"

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	MaxRetries        int
	RetryBackoff      int
	EnableCompression bool
}

// MessageWriter kafka.Writer 的最小接口，便于测试替换
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer MessageWriter
	config KafkaConfig
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll, // 等待所有副本确认
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}
	if cfg.EnableCompression {
		writer.Compression = kafka.Gzip
	}

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &KafkaProducer{
		writer: writer,
		config: cfg,
	}, nil
}

// NewProducerWithWriter 使用自定义 writer 创建生产者
func NewProducerWithWriter(w MessageWriter, cfg KafkaConfig) *KafkaProducer {
	return &KafkaProducer{writer: w, config: cfg}
}

// Topic 默认主题
func (kp *KafkaProducer) Topic() string {
	return kp.config.Topic
}

// SendMessage 发送单条 JSON 消息，eventType 写入消息头
func (kp *KafkaProducer) SendMessage(ctx context.Context, eventType, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if eventType != "" {
		msg.Headers = []kafka.Header{{Key: EventTypeHeader, Value: []byte(eventType)}}
	}

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "Failed to send Kafka message",
			"topic", kp.config.Topic,
			"event_type", eventType,
			"key", key,
			"error", err,
		)
		return err
	}

	logger.Debug(ctx, "Kafka message sent",
		"topic", kp.config.Topic,
		"event_type", eventType,
		"key", key,
	)
	return nil
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
