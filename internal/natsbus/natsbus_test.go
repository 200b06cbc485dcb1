package natsbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/crewdhq/crewd/internal/config"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(config.NATSConfig{
		Port:    0, // Random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func TestBusStartStop(t *testing.T) {
	bus := newTestBus(t)
	if bus.ClientURL() == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestPubSub(t *testing.T) {
	bus := newTestBus(t)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	_, err = client.Subscribe("test.topic", func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.Publish("test.topic", []byte("hello")); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != "hello" {
			t.Errorf("expected 'hello', got '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishEvent(t *testing.T) {
	bus := newTestBus(t)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan []byte, 1)
	topic := TopicConversationEvents("conv-1")
	_, err = client.Subscribe(TopicEventsConversation, func(msg *nats.Msg) {
		received <- msg.Data
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	env := EventEnvelope{
		ConversationID: "conv-1",
		Type:           "task_assignment",
		Agent:          "researcher",
		Description:    "Assigned task to researcher",
	}
	if err := client.PublishEvent(topic, env); err != nil {
		t.Fatalf("publish event error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		var got EventEnvelope
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if got.Topic != topic || got.Type != "task_assignment" || got.Agent != "researcher" {
			t.Errorf("unexpected envelope: %+v", got)
		}
		if got.Timestamp.IsZero() {
			t.Error("expected stamped timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicConversationEvents("c1"); got != "events.conversation.c1" {
		t.Errorf("expected events.conversation.c1, got %s", got)
	}
	if got := TopicConversationFragments("c1"); got != "stream.conversation.c1" {
		t.Errorf("expected stream.conversation.c1, got %s", got)
	}
	if got := TopicCrewEvents("k1"); got != "events.crew.k1" {
		t.Errorf("expected events.crew.k1, got %s", got)
	}
}
