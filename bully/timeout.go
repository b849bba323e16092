package bully

// CheckTimeouts resolves the two waits by elapsed time. Messages must be
// drained first so an announcement can pre-empt a timeout in the same tick.
func (e *Election) CheckTimeouts() {
	if e.offline {
		return
	}

	now := e.clock.Now()

	if e.state == WaitingForOK && !e.receivedOK && now.Sub(e.electionStartedAt) >= e.opts.OKTimeout {
		e.log.Info("no OK received, assuming leadership")
		e.BecomeCoordinator()
		return
	}

	if e.state == WaitingForCoordinator && now.Sub(e.coordWaitStartedAt) >= e.opts.CoordinatorTimeout {
		e.log.Info("no announcement received, restarting election")
		e.setState(Idle)
		e.StartElection("timeout", true)
	}
}
