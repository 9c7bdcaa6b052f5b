package event

import (
	"testing"
)

func TestMulti_Publish(t *testing.T) {
	var first, second []Kind

	sink := Multi{
		SinkFunc(func(evt Event) { first = append(first, evt.Kind) }),
		nil,
		SinkFunc(func(evt Event) { second = append(second, evt.Kind) }),
	}

	sink.Publish(Event{Kind: KindConnectionOpened})
	sink.Publish(Event{Kind: KindConnectionClosed})

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("Expected both sinks to get 2 events, got %d and %d", len(first), len(second))
	}
	if first[1] != KindConnectionClosed {
		t.Errorf("Expected events in publish order, got: %v", first)
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic
	Discard.Publish(Event{Kind: KindRouteStarted})
}
