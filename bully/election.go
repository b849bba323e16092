package bully

import (
	"time"

	"github.com/krantius/bully/shared/logging"
	log "github.com/sirupsen/logrus"
)

// Election is one participant's view of the bully protocol.
//
// It is not safe for concurrent use; Node serializes every call.
type Election struct {
	self  Membership
	opts  Options
	clock Clock
	out   Sender
	log   *log.Entry

	state          State
	coordinator    int
	hasCoordinator bool

	receivedOK bool
	offline    bool

	electionStartedAt  time.Time
	coordWaitStartedAt time.Time
}

// NewElection creates an idle participant that sends through out
func NewElection(self Membership, out Sender, opts Options) (*Election, error) {
	if err := self.Validate(); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()

	return &Election{
		self:        self,
		opts:        opts,
		clock:       opts.Clock,
		out:         out,
		log:         logging.For(self.ID),
		state:       Idle,
		coordinator: NoCoordinator,
	}, nil
}

func (e *Election) ID() int {
	return e.self.ID
}

func (e *Election) State() State {
	return e.state
}

func (e *Election) Offline() bool {
	return e.offline
}

// Coordinator returns the last coordinator learned of, if any
func (e *Election) Coordinator() (int, bool) {
	return e.coordinator, e.hasCoordinator
}

// Bootstrap runs once when the participant joins the loop
func (e *Election) Bootstrap() {
	if len(e.self.Higher()) == 0 || e.opts.ElectOnStartup {
		e.StartElection("startup", false)
	}
}

// StartElection challenges every higher participant, or self-promotes when
// there is none. Unless forced it does nothing while an election is already
// in flight.
func (e *Election) StartElection(reason string, force bool) {
	if e.offline {
		return
	}

	if !force && (e.state == WaitingForOK || e.state == WaitingForCoordinator) {
		e.log.Debugf("election already running, ignoring %q", reason)
		return
	}

	e.log.Infof("starting election (%s)", reason)

	e.receivedOK = false
	e.electionStartedAt = e.clock.Now()

	higher := e.self.Higher()
	if len(higher) == 0 {
		e.BecomeCoordinator()
		return
	}

	for _, id := range higher {
		e.send(id, ElectionRequest(e.self.ID))
	}

	e.setState(WaitingForOK)
}

// BecomeCoordinator declares this participant the coordinator to everyone else
func (e *Election) BecomeCoordinator() {
	e.coordinator = e.self.ID
	e.hasCoordinator = true
	e.setState(Leader)

	e.log.Info("became coordinator")

	for _, id := range e.self.Others() {
		e.send(id, Announcement(e.self.ID))
	}
}

// Handle dispatches an inbound message. While offline it is consumed and dropped.
func (e *Election) Handle(msg Message) {
	if e.offline {
		if msg.Kind == KindElection {
			e.log.Debugf("offline, ignored election from %d", msg.From)
		}
		return
	}

	e.log.Debugf("received %s", msg)

	switch msg.Kind {
	case KindElection:
		e.OnElectionRequest(msg.From)
	case KindOK:
		e.OnOKReply(msg.From)
	case KindCoordinator:
		e.OnCoordinatorAnnouncement(msg.Coordinator)
	default:
		e.log.Warningf("unknown message kind %q from %d", msg.Kind, msg.From)
	}
}

// OnElectionRequest acknowledges a challenger and, when idle, contends too
func (e *Election) OnElectionRequest(from int) {
	if e.offline {
		return
	}

	e.send(from, OKReply(e.self.ID))

	switch e.state {
	case Idle:
		e.StartElection("challenged", false)
	case Leader:
		if e.opts.ReannounceOnChallenge {
			e.BecomeCoordinator()
		}
	}
}

// OnOKReply moves to waiting for the announcement. Late or duplicate replies are dropped.
func (e *Election) OnOKReply(from int) {
	if e.offline || e.state != WaitingForOK {
		return
	}

	e.receivedOK = true
	e.coordWaitStartedAt = e.clock.Now()
	e.setState(WaitingForCoordinator)
}

// OnCoordinatorAnnouncement always wins over whatever election is in flight
func (e *Election) OnCoordinatorAnnouncement(coordinator int) {
	if e.offline {
		return
	}

	e.coordinator = coordinator
	e.hasCoordinator = true

	if coordinator == e.self.ID {
		e.setState(Leader)
	} else {
		e.setState(Idle)
	}

	e.log.Infof("acknowledges %d as coordinator", coordinator)
}

// GoOffline abandons any election locally without telling peers
func (e *Election) GoOffline() {
	e.offline = true
	e.setState(Idle)

	e.log.Warning("went offline")
}

// ComeOnline only clears the flag; whoever calls it decides whether to elect
func (e *Election) ComeOnline() {
	e.offline = false

	e.log.Info("back online")
}

func (e *Election) setState(s State) {
	if e.state == s {
		return
	}

	e.log.Debugf("%s -> %s", e.state, s)
	e.state = s
}

func (e *Election) send(to int, msg Message) {
	if err := e.out.Send(to, msg); err != nil {
		e.log.WithField("to", to).Warningf("send %s failed: %v", msg, err)
	}
}
