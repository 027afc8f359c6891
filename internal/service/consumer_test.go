package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"dineqr/internal/domain"
	"dineqr/internal/mocks"
	"dineqr/internal/service"
	"dineqr/internal/socket"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	events []domain.PushEvent
}

func (r *recordingInvalidator) Invalidate(_ context.Context, event domain.PushEvent) {
	r.events = append(r.events, event)
}

func message(t *testing.T, event domain.PushEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.HotelKey), Value: value}
}

func TestConsumer_ProcessMessage(t *testing.T) {
	valid := domain.PushEvent{Event: socket.EventNewOrder, HotelKey: "h1", Data: json.RawMessage(`{"_id":"o1"}`)}

	tests := []struct {
		name           string
		message        func(t *testing.T) kafka.Message
		setupHub       func(*mocks.Broadcaster)
		wantErr        bool
		wantInvalidate int
	}{
		{
			name:    "success",
			message: func(t *testing.T) kafka.Message { return message(t, valid) },
			setupHub: func(hub *mocks.Broadcaster) {
				hub.On("Broadcast", mock.MatchedBy(func(ev domain.PushEvent) bool {
					return ev.Event == socket.EventNewOrder && ev.HotelKey == "h1"
				})).Return(2)
			},
			wantInvalidate: 1,
		},
		{
			name:     "malformed json",
			message:  func(t *testing.T) kafka.Message { return kafka.Message{Value: []byte("{")} },
			setupHub: func(hub *mocks.Broadcaster) {},
			wantErr:  true,
		},
		{
			name: "missing hotel",
			message: func(t *testing.T) kafka.Message {
				return message(t, domain.PushEvent{Event: socket.EventNewOrder})
			},
			setupHub: func(hub *mocks.Broadcaster) {},
			wantErr:  true,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			hub := mocks.NewBroadcaster(t)
			testCase.setupHub(hub)
			inv := &recordingInvalidator{}
			consumer := &service.Consumer{Hub: hub, Cache: inv}

			err := consumer.ProcessMessage(context.Background(), testCase.message(t))
			if testCase.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, inv.events, testCase.wantInvalidate)
		})
	}
}

func TestConsumer_StartStopsOnEOF(t *testing.T) {
	reader := mocks.NewMessageReader(t)
	hub := mocks.NewBroadcaster(t)

	event := domain.PushEvent{Event: socket.EventConfirmOrders, HotelKey: "h1", Data: json.RawMessage(`[]`)}
	reader.On("ReadMessage", mock.Anything).Return(message(t, event), nil).Once()
	reader.On("ReadMessage", mock.Anything).Return(kafka.Message{}, errors.New("rebalance")).Once()
	reader.On("ReadMessage", mock.Anything).Return(kafka.Message{}, io.EOF).Once()
	hub.On("Broadcast", mock.Anything).Return(0).Once()

	consumer := service.NewConsumer(reader, hub, nil)
	done := make(chan struct{})
	go func() {
		consumer.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	reader := mocks.NewMessageReader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader.On("ReadMessage", mock.Anything).Return(kafka.Message{}, context.Canceled).Once()

	consumer := service.NewConsumer(reader, mocks.NewBroadcaster(t), nil)
	consumer.Start(ctx)
}
