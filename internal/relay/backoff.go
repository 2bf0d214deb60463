package relay

import "time"

// Backoff produces reconnect delays, doubling from Base up to Max. Reset
// restores the initial delay once the feed proves healthy again.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	next time.Duration
}

func (b *Backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = b.Base
	}
	d := b.next
	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}
	return d
}

func (b *Backoff) Reset() {
	b.next = 0
}
