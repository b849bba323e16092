package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/krantius/bully/bully"
)

const (
	DefaultFailAt   = 2 * time.Second
	DefaultDetectAt = 3 * time.Second
	DefaultReturnAt = 9 * time.Second
	DefaultDuration = 12 * time.Second
)

var (
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrDetectorIsOffline  = errors.New("detector cannot be the failing participant")
	ErrInvalidTimeline    = errors.New("invalid timeline")
)

// Config describes one fault injection run: Offline fails at FailAt, Detector
// forces an election at DetectAt and, if Returns, Offline comes back at ReturnAt
// and forces an election of its own.
type Config struct {
	Participants int
	Offline      int
	Detector     int
	Returns      bool

	FailAt   time.Duration
	DetectAt time.Duration
	ReturnAt time.Duration
	Duration time.Duration
	Tick     time.Duration

	OKTimeout          time.Duration
	CoordinatorTimeout time.Duration
}

func DefaultConfig(participants, offline, detector int) Config {
	return Config{
		Participants:       participants,
		Offline:            offline,
		Detector:           detector,
		Returns:            true,
		FailAt:             DefaultFailAt,
		DetectAt:           DefaultDetectAt,
		ReturnAt:           DefaultReturnAt,
		Duration:           DefaultDuration,
		Tick:               bully.DefaultTick,
		OKTimeout:          bully.DefaultOKTimeout,
		CoordinatorTimeout: bully.DefaultCoordinatorTimeout,
	}
}

func (c Config) Validate() error {
	if c.Participants < 2 {
		return fmt.Errorf("need at least 2 participants, got %d: %w", c.Participants, ErrInvalidParticipant)
	}

	if c.Offline < 0 || c.Offline >= c.Participants {
		return fmt.Errorf("offline participant %d outside [0, %d): %w", c.Offline, c.Participants, ErrInvalidParticipant)
	}

	if c.Detector < 0 || c.Detector >= c.Participants {
		return fmt.Errorf("detector %d outside [0, %d): %w", c.Detector, c.Participants, ErrInvalidParticipant)
	}

	if c.Detector == c.Offline {
		return fmt.Errorf("participant %d: %w", c.Detector, ErrDetectorIsOffline)
	}

	if c.Tick <= 0 || c.Duration <= 0 {
		return fmt.Errorf("tick %v and duration %v must be positive: %w", c.Tick, c.Duration, ErrInvalidTimeline)
	}

	if c.FailAt < 0 || c.DetectAt < c.FailAt {
		return fmt.Errorf("failure at %v must not follow detection at %v: %w", c.FailAt, c.DetectAt, ErrInvalidTimeline)
	}

	if c.Returns && (c.ReturnAt <= c.FailAt || c.ReturnAt >= c.Duration) {
		return fmt.Errorf("return at %v must fall between failure at %v and the end at %v: %w", c.ReturnAt, c.FailAt, c.Duration, ErrInvalidTimeline)
	}

	return nil
}

func (c Config) options(clock bully.Clock, epoch time.Time) bully.Options {
	return bully.Options{
		OKTimeout:          c.OKTimeout,
		CoordinatorTimeout: c.CoordinatorTimeout,
		Tick:               c.Tick,
		Clock:              clock,
		Epoch:              epoch,
	}
}
