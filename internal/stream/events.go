package stream

import (
	"encoding/json"
	"fmt"
)

// MaxSeqNum bounds the server-assigned transmission sequence space. Sequence
// numbers wrap from MaxSeqNum-1 back to 0.
const MaxSeqNum = uint64(1) << 31

// Status of a transmission order as reported by the upstream feed.
type Status string

const (
	StatusPending      Status = "pending"
	StatusPaid         Status = "paid"
	StatusTransmitting Status = "transmitting"
	StatusSent         Status = "sent"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusTransmitting, StatusSent:
		return true
	}
	return false
}

// Notification is one transmission order event from the feed. Field names
// are fixed by the upstream API.
type Notification struct {
	UUID          string  `json:"uuid"`
	Status        Status  `json:"status"`
	TxSeqNum      *uint64 `json:"tx_seq_num"`
	MessageSize   int64   `json:"message_size"`
	UploadEndedAt string  `json:"upload_ended_at"`
}

// Seq returns the sequence number of a sent notification. Only valid after
// decodeNotification accepted the event.
func (n *Notification) Seq() uint32 {
	return uint32(*n.TxSeqNum)
}

// decodeNotification parses and validates a single feed event. Any shape
// problem makes the one event undeliverable; it never affects the stream.
func decodeNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decoding order event: %w", err)
	}
	if n.UUID == "" {
		return nil, fmt.Errorf("order event missing uuid")
	}
	if !n.Status.valid() {
		return nil, fmt.Errorf("order %s has unknown status %q", n.UUID, n.Status)
	}
	if n.Status == StatusSent {
		if n.TxSeqNum == nil {
			return nil, fmt.Errorf("sent order %s missing tx_seq_num", n.UUID)
		}
		if *n.TxSeqNum >= MaxSeqNum {
			return nil, fmt.Errorf("sent order %s has out-of-range tx_seq_num %d", n.UUID, *n.TxSeqNum)
		}
	}
	return &n, nil
}
