package stream

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker() *Broker {
	return NewBroker(log.New(io.Discard, "", 0))
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	b := newTestBroker()

	ch, cancel := b.Subscribe(42)
	defer cancel()

	b.Publish(Event{Type: EventProgress, CampaignID: 42, Data: "halfway"})

	select {
	case ev := <-ch:
		assert.Equal(t, EventProgress, ev.Type)
		assert.Equal(t, uint(42), ev.CampaignID)
		assert.Equal(t, "halfway", ev.Data)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the published event")
	}
}

func TestPublishOnlyReachesOwnCampaign(t *testing.T) {
	b := newTestBroker()

	ch, cancel := b.Subscribe(1)
	defer cancel()
	other, cancelOther := b.Subscribe(2)
	defer cancelOther()

	b.Publish(Event{Type: EventComplete, CampaignID: 2})

	select {
	case ev := <-other:
		assert.Equal(t, EventComplete, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("campaign 2 subscriber never received its event")
	}

	select {
	case ev := <-ch:
		t.Fatalf("campaign 1 subscriber received foreign event %q", ev.Type)
	default:
	}
}

func TestCancelIsIdempotentAndClosesChannel(t *testing.T) {
	b := newTestBroker()

	ch, cancel := b.Subscribe(7)
	require.Equal(t, 1, b.SubscriberCount(7))

	cancel()
	cancel() // stream handler and read-drain goroutine may both call it

	assert.Equal(t, 0, b.SubscriberCount(7))

	_, open := <-ch
	assert.False(t, open, "cancel must close the subscriber channel")

	// Publishing after cancel must not panic or deliver
	b.Publish(Event{Type: EventProgress, CampaignID: 7})
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := newTestBroker()

	var channels []<-chan Event
	for i := 0; i < 3; i++ {
		ch, cancel := b.Subscribe(9)
		defer cancel()
		channels = append(channels, ch)
	}
	require.Equal(t, 3, b.SubscriberCount(9))

	b.Publish(Event{Type: EventComplete, CampaignID: 9})

	for i, ch := range channels {
		select {
		case ev := <-ch:
			assert.Equal(t, EventComplete, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := newTestBroker()

	_, cancel := b.Subscribe(3)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nobody drains the channel; overflow past the buffer must be dropped,
		// never block the publisher.
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(Event{Type: EventProgress, CampaignID: 3, Data: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := newTestBroker()
	b.Publish(Event{Type: EventProgress, CampaignID: 999})
	assert.Equal(t, 0, b.SubscriberCount(999))
}
