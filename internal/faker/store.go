package faker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satstream/relay/internal/stream"
)

// Transmission is one sent message held by the fake store.
type Transmission struct {
	UUID    string
	Seq     uint32
	Payload []byte
	SentAt  time.Time
}

// Store keeps sent transmissions in memory, indexed by order uuid and by
// sequence number. Sequence numbers are handed out monotonically and wrap
// at the top of the sequence space, like the real upstream.
type Store struct {
	mu      sync.RWMutex
	byUUID  map[string]*Transmission
	bySeq   map[uint32]*Transmission
	nextSeq uint32
}

func NewStore(startSeq uint32) *Store {
	return &Store{
		byUUID:  make(map[string]*Transmission),
		bySeq:   make(map[uint32]*Transmission),
		nextSeq: startSeq,
	}
}

// Add stores payload as the next sent transmission and returns it.
func (s *Store) Add(payload []byte) *Transmission {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transmission{
		UUID:    uuid.New().String(),
		Seq:     s.nextSeq,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}
	s.nextSeq = uint32((uint64(s.nextSeq) + 1) % stream.MaxSeqNum)

	s.byUUID[tx.UUID] = tx
	s.bySeq[tx.Seq] = tx
	return tx
}

// SkipSeq burns one sequence number without storing a message, simulating a
// transmission whose notification the subscriber will never see stored.
func (s *Store) SkipSeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.nextSeq
	s.nextSeq = uint32((uint64(s.nextSeq) + 1) % stream.MaxSeqNum)
	return seq
}

func (s *Store) ByUUID(id string) (*Transmission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.byUUID[id]
	return tx, ok
}

func (s *Store) BySeq(seq uint32) (*Transmission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.bySeq[seq]
	return tx, ok
}
