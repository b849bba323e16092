package bully

import (
	"context"
	"sync"
	"time"

	"github.com/krantius/bully/shared/logging"
	log "github.com/sirupsen/logrus"
)

// Node drives one participant: every tick it drains the transport, checks
// timeouts, then gives the driver a chance to inject a stimulus.
type Node struct {
	election *Election
	tr       Transport
	driver   Driver

	clock Clock
	epoch time.Time
	tick  time.Duration
	log   *log.Entry

	// Concurrency
	mu      sync.Mutex
	started bool
}

// Status is a point in time snapshot of a participant
type Status struct {
	ID          int   `json:"id"`
	State       State `json:"state"`
	Coordinator int   `json:"coordinator"`
	Offline     bool  `json:"offline"`
}

// NewNode wires a participant to its transport. driver may be nil.
func NewNode(self Membership, tr Transport, driver Driver, opts Options) (*Node, error) {
	opts = opts.withDefaults()

	e, err := NewElection(self, tr, opts)
	if err != nil {
		return nil, err
	}

	return &Node{
		election: e,
		tr:       tr,
		driver:   driver,
		clock:    opts.Clock,
		epoch:    opts.Epoch,
		tick:     opts.Tick,
		log:      logging.For(self.ID),
	}, nil
}

func (n *Node) ID() int {
	return n.election.ID()
}

// Tick runs a single loop iteration
func (n *Node) Tick() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		n.started = true
		n.election.Bootstrap()
	}

	for {
		msg, ok := n.tr.TryReceive()
		if !ok {
			break
		}
		n.election.Handle(msg)
	}

	n.election.CheckTimeouts()

	if n.driver != nil {
		n.driver.Step(n.clock.Now().Sub(n.epoch), n.election)
	}
}

// Run ticks until ctx is done
func (n *Node) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	n.log.Infof("running with tick %v", n.tick)

	for {
		select {
		case <-timer.C:
			n.Tick()
			timer.Reset(n.tick)
		case <-ctx.Done():
			n.log.Info("loop stopping")
			return nil
		}
	}
}

func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.status()
}

func (n *Node) status() Status {
	coord, ok := n.election.Coordinator()
	if !ok {
		coord = NoCoordinator
	}

	return Status{
		ID:          n.election.ID(),
		State:       n.election.State(),
		Coordinator: coord,
		Offline:     n.election.Offline(),
	}
}

func (n *Node) GoOffline() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.election.GoOffline()
}

func (n *Node) ComeOnline() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.election.ComeOnline()
}

func (n *Node) StartElection(reason string, force bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.election.StartElection(reason, force)
}
