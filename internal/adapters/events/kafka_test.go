package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishSettlement(t *testing.T) {
	fw := &fakeWriter{}
	p := newWithWriter(fw, DefaultTopic)

	at := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	err := p.PublishSettlement(context.Background(), domain.SettlementEvent{
		WagerID:       "w-1",
		Status:        domain.StatusSettled,
		Result:        domain.ResultWon,
		Stake:         decimal.NewFromInt(100),
		Payout:        decimal.NewFromInt(190),
		ResolvedPrice: decimal.NewFromInt(69500),
		Balance:       decimal.NewFromInt(1090),
		At:            at,
	})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "w-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "w-1", body["wagerId"])
	assert.Equal(t, "won", body["result"])
	assert.Equal(t, "190", body["payout"])
	assert.Equal(t, "69500", body["resolvedPrice"])
	assert.Equal(t, "settled", body["status"])
	assert.Equal(t, "1090", body["balance"])
	assert.NotContains(t, body, "reason")

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestPublishSettlement_CancelledHasNullResult(t *testing.T) {
	fw := &fakeWriter{}
	p := newWithWriter(fw, DefaultTopic)

	require.NoError(t, p.PublishSettlement(context.Background(), domain.SettlementEvent{
		WagerID: "w-2",
		Status:  domain.StatusCancelled,
		Reason:  "user",
	}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &body))
	assert.Nil(t, body["result"])
	assert.Equal(t, "user", body["reason"])
}

func TestPublishSettlement_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newWithWriter(&fakeWriter{err: boom}, DefaultTopic)

	err := p.PublishSettlement(context.Background(), domain.SettlementEvent{WagerID: "w-3"})
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, p.topic)
	require.NoError(t, p.Close())
}
