// Package memory is an in-process transport: every participant gets an
// unbounded inbox, so delivery between any pair is reliable and FIFO.
package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/krantius/bully/bully"
)

var ErrUnknownParticipant = errors.New("unknown participant")

// Envelope is a message in flight, as recorded in the network trace
type Envelope struct {
	ID     uuid.UUID
	To     int
	Msg    bully.Message
	SentAt time.Time
}

// Network connects a fixed group of participants
type Network struct {
	clock bully.Clock

	mu      sync.Mutex
	inboxes []*deque.Deque[Envelope]
	trace   []Envelope
}

func NewNetwork(total int, clock bully.Clock) *Network {
	if clock == nil {
		clock = bully.SystemClock()
	}

	inboxes := make([]*deque.Deque[Envelope], total)
	for i := range inboxes {
		inboxes[i] = deque.New[Envelope]()
	}

	return &Network{
		clock:   clock,
		inboxes: inboxes,
	}
}

// Endpoint returns participant id's view of the network
func (n *Network) Endpoint(id int) (*Endpoint, error) {
	if id < 0 || id >= len(n.inboxes) {
		return nil, fmt.Errorf("endpoint %d: %w", id, ErrUnknownParticipant)
	}

	return &Endpoint{id: id, net: n}, nil
}

func (n *Network) deliver(to int, msg bully.Message) error {
	if to < 0 || to >= len(n.inboxes) {
		return fmt.Errorf("send to %d: %w", to, ErrUnknownParticipant)
	}

	env := Envelope{
		ID:     uuid.New(),
		To:     to,
		Msg:    msg,
		SentAt: n.clock.Now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.inboxes[to].PushBack(env)
	n.trace = append(n.trace, env)

	return nil
}

func (n *Network) receive(id int) (Envelope, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	q := n.inboxes[id]
	if q.Len() == 0 {
		return Envelope{}, false
	}

	return q.PopFront(), true
}

// Pending counts messages queued for id
func (n *Network) Pending(id int) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.inboxes[id].Len()
}

// Trace returns a copy of every envelope sent so far, in send order
func (n *Network) Trace() []Envelope {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Envelope, len(n.trace))
	copy(out, n.trace)
	return out
}

// Endpoint implements bully.Transport for one participant
type Endpoint struct {
	id  int
	net *Network
}

func (e *Endpoint) Send(to int, msg bully.Message) error {
	return e.net.deliver(to, msg)
}

func (e *Endpoint) TryReceive() (bully.Message, bool) {
	env, ok := e.net.receive(e.id)
	return env.Msg, ok
}
