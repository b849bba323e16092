package scenario

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/krantius/bully/bully"
)

// Change marks a participant learning of a new coordinator
type Change struct {
	At          time.Duration
	Participant int
	Coordinator int
}

type Report struct {
	RunID    uuid.UUID
	Config   Config
	Final    []bully.Status
	Changes  []Change
	Messages int
}

// CoordinatorAt is the coordinator participant id knew of at the given offset
func (r *Report) CoordinatorAt(id int, at time.Duration) int {
	coord := bully.NoCoordinator
	for _, c := range r.Changes {
		if c.At > at {
			break
		}
		if c.Participant == id {
			coord = c.Coordinator
		}
	}
	return coord
}

// Expected is the highest participant online at the end of the run
func (r *Report) Expected() int {
	for i := len(r.Final) - 1; i >= 0; i-- {
		if !r.Final[i].Offline {
			return r.Final[i].ID
		}
	}
	return bully.NoCoordinator
}

// Converged reports whether every online participant agrees on Expected
func (r *Report) Converged() bool {
	want := r.Expected()
	for _, s := range r.Final {
		if !s.Offline && s.Coordinator != want {
			return false
		}
	}
	return true
}

func (r *Report) Print(w io.Writer) {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	c := r.Config
	bold.Fprintf(w, "=== Run %s ===\n", r.RunID)
	fmt.Fprintf(w, "Participants: %d | Offline: %d | Detector: %d | Returns: %v\n", c.Participants, c.Offline, c.Detector, c.Returns)
	fmt.Fprintf(w, "Times: failure=%v detection=%v", c.FailAt, c.DetectAt)
	if c.Returns {
		fmt.Fprintf(w, " return=%v", c.ReturnAt)
	}
	fmt.Fprintf(w, " end=%v\n\n", c.Duration)

	for _, ch := range r.Changes {
		fmt.Fprintf(w, "%8v  participant %d acknowledges %d\n", ch.At, ch.Participant, ch.Coordinator)
	}

	fmt.Fprintln(w)
	want := r.Expected()
	for _, s := range r.Final {
		p := ok
		if !s.Offline && s.Coordinator != want {
			p = bad
		}

		suffix := ""
		if s.Offline {
			suffix = " (offline)"
		}
		p.Fprintf(w, "Participant %d - final coordinator: %d%s\n", s.ID, s.Coordinator, suffix)
	}

	fmt.Fprintf(w, "\n%d messages exchanged\n", r.Messages)
}
