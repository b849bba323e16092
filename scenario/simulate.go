package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/krantius/bully/bully"
	"github.com/krantius/bully/shared/logging"
	"github.com/krantius/bully/transport/memory"
	"golang.org/x/sync/errgroup"
)

type group struct {
	cfg   Config
	epoch time.Time
	net   *memory.Network
	nodes []*bully.Node

	report *Report
	last   []int
}

func newGroup(cfg Config, clock bully.Clock) (*group, error) {
	epoch := clock.Now()
	net := memory.NewNetwork(cfg.Participants, clock)

	g := &group{
		cfg:   cfg,
		epoch: epoch,
		net:   net,
		nodes: make([]*bully.Node, cfg.Participants),
		last:  make([]int, cfg.Participants),
		report: &Report{
			RunID:  uuid.New(),
			Config: cfg,
		},
	}

	for id := range g.nodes {
		ep, err := net.Endpoint(id)
		if err != nil {
			return nil, err
		}

		n, err := bully.NewNode(bully.Membership{ID: id, Total: cfg.Participants}, ep, NewDriver(cfg, id), cfg.options(clock, epoch))
		if err != nil {
			return nil, fmt.Errorf("participant %d: %w", id, err)
		}

		g.nodes[id] = n
		g.last[id] = bully.NoCoordinator
	}

	logging.Logger().WithField("run", g.report.RunID).Infof("group of %d ready", cfg.Participants)

	return g, nil
}

// observe records every participant whose coordinator changed since the last call
func (g *group) observe(at time.Duration) {
	for id, n := range g.nodes {
		s := n.Status()
		if s.Coordinator == g.last[id] {
			continue
		}

		g.last[id] = s.Coordinator
		g.report.Changes = append(g.report.Changes, Change{
			At:          at,
			Participant: id,
			Coordinator: s.Coordinator,
		})
	}
}

func (g *group) finish() *Report {
	g.report.Final = make([]bully.Status, len(g.nodes))
	for id, n := range g.nodes {
		g.report.Final[id] = n.Status()
	}
	g.report.Messages = len(g.net.Trace())

	return g.report
}

// Simulate runs the scenario on a shared manual clock. Every round each
// participant ticks once, in id order, then the clock moves one tick forward.
func Simulate(cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := bully.NewManualClock(time.Unix(0, 0))

	g, err := newGroup(cfg, clock)
	if err != nil {
		return nil, err
	}

	for at := time.Duration(0); at < cfg.Duration; at += cfg.Tick {
		for _, n := range g.nodes {
			n.Tick()
		}

		g.observe(at)
		clock.Advance(cfg.Tick)
	}

	return g.finish(), nil
}

// RunRealtime runs every participant in its own goroutine on the wall clock
func RunRealtime(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, err := newGroup(cfg, bully.SystemClock())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	for _, n := range g.nodes {
		n := n
		eg.Go(func() error {
			return n.Run(ctx)
		})
	}

	eg.Go(func() error {
		ticker := time.NewTicker(cfg.Tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				g.observe(time.Since(g.epoch))
			case <-ctx.Done():
				return nil
			}
		}
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return g.finish(), nil
}
