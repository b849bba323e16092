package bully

import (
	"fmt"
	"time"
)

const (
	DefaultOKTimeout          = 2 * time.Second
	DefaultCoordinatorTimeout = 4 * time.Second
	DefaultTick               = 20 * time.Millisecond
)

// NoCoordinator is reported while a participant has not learned of any coordinator
const NoCoordinator = -1

type State string

const (
	Idle                  State = "idle"
	WaitingForOK          State = "waiting-for-ok"
	WaitingForCoordinator State = "waiting-for-coordinator"
	Leader                State = "leader"
)

type Kind string

const (
	KindElection    Kind = "election"
	KindOK          Kind = "ok"
	KindCoordinator Kind = "coordinator"
)

// Message is the unit exchanged between participants.
//
// Coordinator is only meaningful for KindCoordinator, where it always equals From.
type Message struct {
	Kind        Kind
	From        int
	Coordinator int
}

func ElectionRequest(from int) Message {
	return Message{Kind: KindElection, From: from}
}

func OKReply(from int) Message {
	return Message{Kind: KindOK, From: from}
}

func Announcement(coordinator int) Message {
	return Message{Kind: KindCoordinator, From: coordinator, Coordinator: coordinator}
}

func (m Message) String() string {
	if m.Kind == KindCoordinator {
		return fmt.Sprintf("{%s from=%d coordinator=%d}", m.Kind, m.From, m.Coordinator)
	}
	return fmt.Sprintf("{%s from=%d}", m.Kind, m.From)
}

// Membership is the static identity of a participant within a group of Total
type Membership struct {
	ID    int
	Total int
}

func (m Membership) Validate() error {
	if m.Total < 1 {
		return fmt.Errorf("group size must be positive, got %d", m.Total)
	}

	if m.ID < 0 || m.ID >= m.Total {
		return fmt.Errorf("participant id %d outside [0, %d)", m.ID, m.Total)
	}

	return nil
}

// Higher lists every id that outranks this participant
func (m Membership) Higher() []int {
	ids := make([]int, 0, m.Total-m.ID-1)
	for i := m.ID + 1; i < m.Total; i++ {
		ids = append(ids, i)
	}
	return ids
}

// Others lists every id except this participant's own
func (m Membership) Others() []int {
	ids := make([]int, 0, m.Total-1)
	for i := 0; i < m.Total; i++ {
		if i != m.ID {
			ids = append(ids, i)
		}
	}
	return ids
}

// Sender delivers a message to a single peer
type Sender interface {
	Send(to int, msg Message) error
}

// Transport is the reliable, per-pair FIFO message layer a participant runs on.
// TryReceive must never block.
type Transport interface {
	Sender
	TryReceive() (Message, bool)
}

// Controller is the surface a Driver may use to inject stimuli
type Controller interface {
	ID() int
	GoOffline()
	ComeOnline()
	StartElection(reason string, force bool)
	Coordinator() (int, bool)
}

// Driver is consulted once per tick, after messages and timeouts, with the
// time elapsed since the group epoch.
type Driver interface {
	Step(elapsed time.Duration, c Controller)
}

// Options tune a participant. Zero values fall back to the defaults.
type Options struct {
	OKTimeout          time.Duration
	CoordinatorTimeout time.Duration
	Tick               time.Duration

	// ReannounceOnChallenge makes a leader resend its announcement to everyone
	// when it is challenged, on top of the OK reply.
	ReannounceOnChallenge bool

	// ElectOnStartup makes every participant start an election on its first
	// tick. Without it only the highest participant acts, by self-promoting.
	ElectOnStartup bool

	Clock Clock

	// Epoch is the group start time drivers measure elapsed time from
	Epoch time.Time
}

func (o Options) withDefaults() Options {
	if o.OKTimeout <= 0 {
		o.OKTimeout = DefaultOKTimeout
	}
	if o.CoordinatorTimeout <= 0 {
		o.CoordinatorTimeout = DefaultCoordinatorTimeout
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.Epoch.IsZero() {
		o.Epoch = o.Clock.Now()
	}
	return o
}
