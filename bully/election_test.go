package bully

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewElectionRejectsBadMembership(t *testing.T) {
	cases := []struct {
		name string
		m    Membership
	}{
		{name: "Empty group", m: Membership{ID: 0, Total: 0}},
		{name: "Negative id", m: Membership{ID: -1, Total: 3}},
		{name: "Id past end", m: Membership{ID: 3, Total: 3}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewElection(c.m, &recorder{}, Options{})
			require.Error(t, err)
		})
	}
}

func TestStartElection(t *testing.T) {
	cases := []struct {
		name          string
		id            int
		total         int
		expectedState State
		expectedReqs  []int
		expectedAnns  []int
	}{
		{
			name:          "Lowest challenges everyone above",
			id:            0,
			total:         5,
			expectedState: WaitingForOK,
			expectedReqs:  []int{1, 2, 3, 4},
			expectedAnns:  []int{},
		},
		{
			name:          "Middle challenges only higher",
			id:            2,
			total:         5,
			expectedState: WaitingForOK,
			expectedReqs:  []int{3, 4},
			expectedAnns:  []int{},
		},
		{
			name:          "Highest self-promotes",
			id:            4,
			total:         5,
			expectedState: Leader,
			expectedReqs:  []int{},
			expectedAnns:  []int{0, 1, 2, 3},
		},
		{
			name:          "Single participant group",
			id:            0,
			total:         1,
			expectedState: Leader,
			expectedReqs:  []int{},
			expectedAnns:  []int{},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, rec, _ := newTestElection(t, c.id, c.total, Options{})

			e.StartElection("test", false)

			require.Equal(t, c.expectedState, e.State())
			require.Equal(t, c.expectedReqs, rec.to(KindElection))
			require.Equal(t, c.expectedAnns, rec.to(KindCoordinator))
			require.False(t, e.receivedOK)
		})
	}
}

func TestSelfPromotionAnnouncesOnce(t *testing.T) {
	e, rec, _ := newTestElection(t, 4, 5, Options{})

	e.StartElection("test", false)

	coord, ok := e.Coordinator()
	require.True(t, ok)
	require.Equal(t, 4, coord)

	require.Len(t, rec.sent, 4)
	for _, s := range rec.sent {
		require.Equal(t, Announcement(4), s.msg)
	}
}

func TestStartElectionIsIdempotentWhileWaiting(t *testing.T) {
	e, rec, clock := newTestElection(t, 1, 4, Options{})

	e.StartElection("first", false)
	started := e.electionStartedAt
	rec.reset()

	clock.Advance(DefaultOKTimeout / 2)
	e.StartElection("second", false)

	require.Empty(t, rec.sent)
	require.Equal(t, started, e.electionStartedAt)
	require.Equal(t, WaitingForOK, e.State())

	e.OnOKReply(2)
	e.StartElection("third", false)

	require.Empty(t, rec.sent)
	require.Equal(t, WaitingForCoordinator, e.State())
}

func TestForcedElectionRestartsWhileWaiting(t *testing.T) {
	e, rec, clock := newTestElection(t, 1, 4, Options{})

	e.StartElection("first", false)
	e.OnOKReply(3)
	rec.reset()

	clock.Advance(DefaultOKTimeout)
	e.StartElection("again", true)

	require.Equal(t, WaitingForOK, e.State())
	require.Equal(t, []int{2, 3}, rec.to(KindElection))
	require.Equal(t, clock.Now(), e.electionStartedAt)
	require.False(t, e.receivedOK)
}

func TestOnElectionRequest(t *testing.T) {
	cases := []struct {
		name          string
		opts          Options
		setup         func(e *Election)
		expectedState State
		expectedReqs  []int
		expectedAnns  []int
	}{
		{
			name:          "Idle replies and contends",
			setup:         func(e *Election) {},
			expectedState: WaitingForOK,
			expectedReqs:  []int{3, 4},
			expectedAnns:  []int{},
		},
		{
			name: "Waiting replies only",
			setup: func(e *Election) {
				e.StartElection("setup", false)
			},
			expectedState: WaitingForOK,
			expectedReqs:  []int{},
			expectedAnns:  []int{},
		},
		{
			name: "Leader replies only",
			setup: func(e *Election) {
				e.BecomeCoordinator()
			},
			expectedState: Leader,
			expectedReqs:  []int{},
			expectedAnns:  []int{},
		},
		{
			name: "Leader reannounces when configured",
			opts: Options{ReannounceOnChallenge: true},
			setup: func(e *Election) {
				e.BecomeCoordinator()
			},
			expectedState: Leader,
			expectedReqs:  []int{},
			expectedAnns:  []int{0, 1, 3, 4},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, rec, _ := newTestElection(t, 2, 5, c.opts)
			c.setup(e)
			rec.reset()

			e.OnElectionRequest(1)

			require.Equal(t, sent{to: 1, msg: OKReply(2)}, rec.sent[0])
			require.Equal(t, c.expectedState, e.State())
			require.Equal(t, c.expectedReqs, rec.to(KindElection))
			require.Equal(t, c.expectedAnns, rec.to(KindCoordinator))
		})
	}
}

func TestOnOKReply(t *testing.T) {
	e, _, clock := newTestElection(t, 0, 3, Options{})

	e.OnOKReply(1)
	require.Equal(t, Idle, e.State(), "stray OK must not start anything")

	e.StartElection("test", false)
	clock.Advance(DefaultTick)
	e.OnOKReply(2)

	require.Equal(t, WaitingForCoordinator, e.State())
	require.True(t, e.receivedOK)
	require.Equal(t, clock.Now(), e.coordWaitStartedAt)

	clock.Advance(DefaultTick)
	e.OnOKReply(1)

	require.Equal(t, WaitingForCoordinator, e.State())
	require.Equal(t, epoch.Add(DefaultTick), e.coordWaitStartedAt, "duplicate OK must not re-arm the wait")
}

func TestOnCoordinatorAnnouncement(t *testing.T) {
	cases := []struct {
		name          string
		setup         func(e *Election)
		coordinator   int
		expectedState State
	}{
		{name: "Idle learns coordinator", setup: func(e *Election) {}, coordinator: 3, expectedState: Idle},
		{
			name:          "Overrides OK wait",
			setup:         func(e *Election) { e.StartElection("test", false) },
			coordinator:   3,
			expectedState: Idle,
		},
		{
			name: "Overrides coordinator wait",
			setup: func(e *Election) {
				e.StartElection("test", false)
				e.OnOKReply(3)
			},
			coordinator:   3,
			expectedState: Idle,
		},
		{
			name:          "Leader steps down for another",
			setup:         func(e *Election) { e.BecomeCoordinator() },
			coordinator:   3,
			expectedState: Idle,
		},
		{name: "Self announced becomes leader", setup: func(e *Election) {}, coordinator: 1, expectedState: Leader},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, rec, _ := newTestElection(t, 1, 4, Options{})
			c.setup(e)
			rec.reset()

			e.OnCoordinatorAnnouncement(c.coordinator)

			coord, ok := e.Coordinator()
			require.True(t, ok)
			require.Equal(t, c.coordinator, coord)
			require.Equal(t, c.expectedState, e.State())
			require.Empty(t, rec.sent)
		})
	}
}

func TestOfflineSilence(t *testing.T) {
	e, rec, _ := newTestElection(t, 1, 4, Options{})
	e.OnCoordinatorAnnouncement(3)

	e.StartElection("before", false)
	e.GoOffline()
	require.Equal(t, Idle, e.State())
	rec.reset()

	e.Handle(ElectionRequest(0))
	e.Handle(OKReply(2))
	e.Handle(Announcement(2))
	e.StartElection("while offline", true)

	require.Empty(t, rec.sent)
	require.Equal(t, Idle, e.State())

	coord, _ := e.Coordinator()
	require.Equal(t, 3, coord)

	e.ComeOnline()
	require.False(t, e.Offline())
	require.Equal(t, Idle, e.State(), "coming online must not elect by itself")
	require.Empty(t, rec.sent)
}

func TestHandleDispatch(t *testing.T) {
	e, rec, _ := newTestElection(t, 1, 3, Options{})

	e.Handle(ElectionRequest(0))
	require.Equal(t, WaitingForOK, e.State())
	require.Equal(t, []int{0}, rec.to(KindOK))

	e.Handle(OKReply(2))
	require.Equal(t, WaitingForCoordinator, e.State())

	e.Handle(Announcement(2))
	require.Equal(t, Idle, e.State())

	e.Handle(Message{Kind: "gossip", From: 0})
	require.Equal(t, Idle, e.State())
}

func TestSendFailuresAreNotFatal(t *testing.T) {
	e, rec, _ := newTestElection(t, 0, 3, Options{})
	rec.fail = map[int]bool{2: true}

	e.StartElection("test", false)

	require.Equal(t, WaitingForOK, e.State())
	require.Equal(t, []int{1}, rec.to(KindElection))
}

func TestBootstrap(t *testing.T) {
	cases := []struct {
		name          string
		id            int
		opts          Options
		expectedState State
	}{
		{name: "Highest self-promotes", id: 2, expectedState: Leader},
		{name: "Others wait", id: 1, expectedState: Idle},
		{name: "Others elect when asked to", id: 1, opts: Options{ElectOnStartup: true}, expectedState: WaitingForOK},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, _, _ := newTestElection(t, c.id, 3, c.opts)
			e.Bootstrap()
			require.Equal(t, c.expectedState, e.State())
		})
	}
}
