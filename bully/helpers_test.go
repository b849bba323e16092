package bully

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type sent struct {
	to  int
	msg Message
}

// recorder is a transport that keeps everything sent and replays a scripted inbox
type recorder struct {
	sent  []sent
	inbox []Message
	fail  map[int]bool
}

func (r *recorder) Send(to int, msg Message) error {
	if r.fail[to] {
		return errors.New("unreachable")
	}
	r.sent = append(r.sent, sent{to: to, msg: msg})
	return nil
}

func (r *recorder) TryReceive() (Message, bool) {
	if len(r.inbox) == 0 {
		return Message{}, false
	}
	msg := r.inbox[0]
	r.inbox = r.inbox[1:]
	return msg, true
}

// to returns the recipients of every message of kind k, in send order
func (r *recorder) to(k Kind) []int {
	ids := []int{}
	for _, s := range r.sent {
		if s.msg.Kind == k {
			ids = append(ids, s.to)
		}
	}
	return ids
}

func (r *recorder) reset() {
	r.sent = nil
}

func newTestElection(t *testing.T, id, total int, opts Options) (*Election, *recorder, *ManualClock) {
	t.Helper()

	clock := NewManualClock(epoch)
	opts.Clock = clock

	rec := &recorder{}
	e, err := NewElection(Membership{ID: id, Total: total}, rec, opts)
	require.NoError(t, err)

	return e, rec, clock
}
