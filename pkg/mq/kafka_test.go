package mq_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/quantpricing/pkg/mq"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestSendMessage(t *testing.T) {
	w := &recordingWriter{}
	p := mq.NewProducerWithWriter(w, mq.KafkaConfig{Topic: "pricing.events"})

	require.NoError(t, p.SendMessage(context.Background(), "OptionPriced", "AAPL", map[string]float64{"price": 1.5}))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "AAPL", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, mq.EventTypeHeader, msg.Headers[0].Key)
	assert.Equal(t, "OptionPriced", string(msg.Headers[0].Value))

	var body map[string]float64
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, 1.5, body["price"])
	assert.Equal(t, "pricing.events", p.Topic())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestSendMessageErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := mq.NewProducerWithWriter(&recordingWriter{err: boom}, mq.KafkaConfig{})
	require.ErrorIs(t, p.SendMessage(context.Background(), "x", "k", 1), boom)

	// 无法序列化的值
	err := mq.NewProducerWithWriter(&recordingWriter{}, mq.KafkaConfig{}).
		SendMessage(context.Background(), "x", "k", make(chan int))
	require.Error(t, err)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := mq.NewProducer(mq.KafkaConfig{Topic: "t"})
	require.Error(t, err)
}
