package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublish_EncodesValueAndKey(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, "changes")

	err := p.Publish(context.Background(), Event{
		Key:     "7",
		Value:   map[string]int{"id": 7},
		Headers: map[string]string{"kind": "update"},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)
	assert.Equal(t, []byte("7"), w.messages[0].Key)
	assert.Contains(t, w.messages[0].Headers, kafka.Header{Key: "kind", Value: []byte("update")})
	assert.Contains(t, w.messages[0].Headers, kafka.Header{Key: "content-type", Value: []byte("application/json")})

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, 7, decoded["id"])
}

func TestPublish_PropagatesWriterError(t *testing.T) {
	p := newProducer(&recordingWriter{err: errors.New("broker unavailable")}, "changes")

	err := p.Publish(context.Background(), Event{Key: "1", Value: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestPublish_RejectsUnencodableValue(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, "changes")

	require.Error(t, p.Publish(context.Background(), Event{Key: "1", Value: make(chan int)}))
	assert.Empty(t, w.messages)
}
