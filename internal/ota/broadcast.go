package ota

import "sync"

// Broadcast fans a single producer's OtaStatus stream out to every
// subscriber. The Manager subscribes the Status Router; the Handler
// learns of job completion through its own done channel instead.
type Broadcast struct {
	mu   sync.Mutex
	subs []chan OtaStatus
}

func NewBroadcast() *Broadcast {
	return &Broadcast{}
}

// Subscribe returns a new channel that receives every subsequent
// Publish call. The channel is buffered to keep a slow subscriber from
// blocking the Actor.
func (b *Broadcast) Subscribe() <-chan OtaStatus {
	ch := make(chan OtaStatus, 32)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish sends s to every current subscriber. Within one OtaId,
// calls from the same goroutine preserve total order per subscriber.
func (b *Broadcast) Publish(s OtaStatus) {
	b.mu.Lock()
	subs := make([]chan OtaStatus, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, ch := range subs {
		ch <- s
	}
}
