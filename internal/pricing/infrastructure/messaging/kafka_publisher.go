package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
)

// MessageProducer mq.KafkaProducer 的发送接口
type MessageProducer interface {
	SendMessage(ctx context.Context, eventType, key string, value any) error
}

// KafkaEventPublisher 实现 domain.EventPublisher，事件以 JSON 写入 Kafka，
// 消息 key 为标的代码，保证同一标的的事件有序
type KafkaEventPublisher struct {
	producer MessageProducer
}

// NewKafkaEventPublisher 创建新的 KafkaEventPublisher 实例
func NewKafkaEventPublisher(producer MessageProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// PublishOptionPriced 发布期权定价完成事件
func (p *KafkaEventPublisher) PublishOptionPriced(ctx context.Context, event domain.OptionPricedEvent) error {
	return p.publishEvent(ctx, domain.OptionPricedEventType, event.Underlying, event)
}

// PublishGreeksCalculated 发布希腊字母计算完成事件
func (p *KafkaEventPublisher) PublishGreeksCalculated(ctx context.Context, event domain.GreeksCalculatedEvent) error {
	return p.publishEvent(ctx, domain.GreeksCalculatedEventType, event.Underlying, event)
}

// PublishImpliedVolSolved 发布隐含波动率求解事件
func (p *KafkaEventPublisher) PublishImpliedVolSolved(ctx context.Context, event domain.ImpliedVolSolvedEvent) error {
	return p.publishEvent(ctx, domain.ImpliedVolSolvedEventType, event.Underlying, event)
}

// PublishBatchPricingCompleted 发布批量定价完成事件
func (p *KafkaEventPublisher) PublishBatchPricingCompleted(ctx context.Context, event domain.BatchPricingCompletedEvent) error {
	return p.publishEvent(ctx, domain.BatchPricingCompletedEventType, event.BatchID, event)
}

// publishEvent 通用事件发布方法
func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType, key string, event any) error {
	if key == "" {
		key = eventType
	}
	if err := p.producer.SendMessage(ctx, eventType, key, event); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
