package scenario

import (
	"time"

	"github.com/krantius/bully/bully"
)

// Driver injects the configured faults into a single participant, at most
// one stimulus per tick.
type Driver struct {
	cfg Config
	id  int

	wentOffline bool
	detected    bool
	cameBack    bool
	reelected   bool
}

func NewDriver(cfg Config, id int) *Driver {
	return &Driver{cfg: cfg, id: id}
}

func (d *Driver) Step(elapsed time.Duration, c bully.Controller) {
	switch {
	case d.id == d.cfg.Offline && !d.wentOffline && elapsed >= d.cfg.FailAt:
		d.wentOffline = true
		c.GoOffline()

	case d.id == d.cfg.Detector && !d.detected && elapsed >= d.cfg.DetectAt:
		d.detected = true
		c.StartElection("detected failure", true)

	case d.id == d.cfg.Offline && d.cfg.Returns && d.wentOffline && !d.cameBack && elapsed >= d.cfg.ReturnAt:
		d.cameBack = true
		c.ComeOnline()

	case d.cameBack && !d.reelected:
		d.reelected = true
		c.StartElection("return", true)
	}
}
