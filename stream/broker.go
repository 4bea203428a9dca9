package stream

import (
	"log"
	"sync"
)

// Event types pushed over SSE/WebSocket
const (
	EventConnected = "connected"
	EventProgress  = "progress"
	EventComplete  = "complete"
)

// Event is one update for a campaign's subscribers
type Event struct {
	Type       string      `json:"type"`
	CampaignID uint        `json:"campaign_id"`
	Data       interface{} `json:"data"`
}

// subscriber buffer; slow consumers get their connection dropped, the
// authoritative state lives in the campaign row anyway
const subscriberBuffer = 16

// Broker fans campaign events out to connected stream subscribers. The server
// is the single source of truth: delivery here is best effort, clients
// reconcile against GET campaign-status.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan Event]struct{}
	logger      *log.Logger
}

func NewBroker(logger *log.Logger) *Broker {
	return &Broker{
		subscribers: make(map[uint]map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers interest in one campaign's events. The returned cancel
// function is idempotent and closes the channel.
func (b *Broker) Subscribe(campaignID uint) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if _, ok := b.subscribers[campaignID]; !ok {
		b.subscribers[campaignID] = make(map[chan Event]struct{})
	}
	b.subscribers[campaignID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subscribers[campaignID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subscribers, campaignID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its campaign without
// blocking: a subscriber with a full buffer misses the event.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[ev.CampaignID] {
		select {
		case ch <- ev:
		default:
			b.logger.Printf("Dropping %s event for campaign %d: subscriber buffer full", ev.Type, ev.CampaignID)
		}
	}
}

// SubscriberCount returns the number of open subscriptions for a campaign
func (b *Broker) SubscriberCount(campaignID uint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[campaignID])
}
