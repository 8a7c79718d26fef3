package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

func sampleEvent() LifecycleEvent {
	driver := int64(42)
	return LifecycleEvent{
		DeliveryID: 7,
		Event:      domain.EventAccept,
		Status:     domain.StatusInProgress,
		ActorID:    42,
		DriverID:   &driver,
		At:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestStreamPublisher_XAdd(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	p := NewStreamPublisher(rdb, "")
	require.NoError(t, p.Publish(context.Background(), sampleEvent()))

	msgs, err := rdb.XRange(context.Background(), "dispatch:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "7", msgs[0].Values["delivery_id"])
	assert.Equal(t, "accept", msgs[0].Values["event"])
	assert.Equal(t, "in_progress", msgs[0].Values["status"])

	var decoded LifecycleEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, sampleEvent(), decoded)
}

func TestStreamPublisher_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	err := NewStreamPublisher(rdb, "s").Publish(context.Background(), sampleEvent())
	assert.Error(t, err)
}

type fakeSender struct {
	topic        string
	qos          byte
	payload      []byte
	err          error
	disconnected bool
}

func (f *fakeSender) Publish(topic string, qos byte, _ bool, payload []byte) error {
	f.topic, f.qos, f.payload = topic, qos, payload
	return f.err
}

func (f *fakeSender) Disconnect() { f.disconnected = true }

func TestMQTTPublisher_TopicPerDelivery(t *testing.T) {
	s := &fakeSender{}
	p := NewMQTTPublisher(s, "acme/dispatch")

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "acme/dispatch/7", s.topic)
	assert.Equal(t, byte(1), s.qos)
	assert.Contains(t, string(s.payload), `"event":"accept"`)

	require.NoError(t, p.Close())
	assert.True(t, s.disconnected)
}

func TestMQTTPublisher_Error(t *testing.T) {
	s := &fakeSender{err: errors.New("not connected")}
	err := NewMQTTPublisher(s, "").Publish(context.Background(), sampleEvent())
	assert.EqualError(t, err, "not connected")
	assert.Equal(t, "dispatch/deliveries/7", s.topic)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}
