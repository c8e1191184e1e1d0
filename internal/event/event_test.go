package event

import (
	"testing"

	"github.com/dshills/keystorm/internal/event/topic"
)

func TestNewEventPopulatesMetadata(t *testing.T) {
	ev := NewEvent(topic.Topic("a.b"), 42, "engine")

	if ev.Type != "a.b" {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.Payload != 42 {
		t.Errorf("Payload = %d", ev.Payload)
	}
	if ev.Metadata.ID == "" {
		t.Error("ID is empty")
	}
	if ev.Metadata.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
	if ev.Metadata.Source != "engine" {
		t.Errorf("Source = %q", ev.Metadata.Source)
	}
}

func TestEventIDsAreUnique(t *testing.T) {
	a := NewEvent(topic.Topic("t"), 0, "s")
	b := NewEvent(topic.Topic("t"), 0, "s")
	if a.Metadata.ID == b.Metadata.ID {
		t.Error("two events share an ID")
	}
}

func TestToEnvelope(t *testing.T) {
	ev := NewEvent(topic.Topic("x.y"), "data", "src")

	env := ToEnvelope(ev)
	if env.Topic != "x.y" {
		t.Errorf("Topic = %q", env.Topic)
	}
	if env.Metadata.Source != "src" {
		t.Errorf("Source = %q", env.Metadata.Source)
	}
	inner, ok := env.Payload.(Event[string])
	if !ok || inner.Payload != "data" {
		t.Errorf("Payload = %#v", env.Payload)
	}
}

func TestToEnvelopeNonEvent(t *testing.T) {
	env := ToEnvelope(struct{}{})
	if env.Topic != "" {
		t.Errorf("Topic = %q, want empty", env.Topic)
	}
}
