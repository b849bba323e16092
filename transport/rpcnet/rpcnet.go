// Package rpcnet carries bully messages between processes over net/rpc.
//
// Sends are synchronous calls, so messages from one participant to another
// are delivered in the order they were sent.
package rpcnet

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/krantius/bully/bully"
	"github.com/krantius/bully/shared/logging"
)

const (
	serviceName = "Bully"

	dialTimeout time.Duration = 500 * time.Millisecond
	callTimeout time.Duration = 500 * time.Millisecond
)

var (
	ErrUnknownPeer = errors.New("unknown peer")
	ErrCallTimeout = errors.New("rpc call timed out")
	ErrBadPeerSpec = errors.New("bad peer spec")
)

// Ack is the reply to a delivery, naming the participant that queued it
type Ack struct {
	Participant int
}

type rpcServer struct {
	id        int
	deliverCb func(msg bully.Message)
}

func (r *rpcServer) Deliver(msg bully.Message, ack *Ack) error {
	r.deliverCb(msg)
	ack.Participant = r.id
	return nil
}

// Transport implements bully.Transport for one participant
type Transport struct {
	id    int
	peers map[int]string

	server   *rpc.Server
	listener net.Listener

	inboxMu sync.Mutex
	inbox   *deque.Deque[bully.Message]

	clientsMu sync.Mutex
	clients   map[int]*rpc.Client
}

func New(id int, peers map[int]string) (*Transport, error) {
	t := &Transport{
		id:      id,
		peers:   peers,
		server:  rpc.NewServer(),
		inbox:   deque.New[bully.Message](),
		clients: make(map[int]*rpc.Client, len(peers)),
	}

	if err := t.server.RegisterName(serviceName, &rpcServer{id: id, deliverCb: t.enqueue}); err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return t, nil
}

// Listen starts accepting peers on addr in the background
func (t *Transport) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	t.listener = l

	logging.For(t.id).Infof("rpc listening on %s", l.Addr())
	go t.server.Accept(l)

	return nil
}

// Addr is the bound listener address, nil before Listen
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *Transport) Send(to int, msg bully.Message) error {
	client, err := t.client(to)
	if err != nil {
		return err
	}

	call := client.Go(serviceName+".Deliver", msg, &Ack{}, make(chan *rpc.Call, 1))

	select {
	case <-call.Done:
		err = call.Error
	case <-time.After(callTimeout):
		err = ErrCallTimeout
	}

	if err != nil {
		t.dropClient(to, client)
		return fmt.Errorf("deliver to %d: %w", to, err)
	}

	return nil
}

func (t *Transport) TryReceive() (bully.Message, bool) {
	t.inboxMu.Lock()
	defer t.inboxMu.Unlock()

	if t.inbox.Len() == 0 {
		return bully.Message{}, false
	}
	return t.inbox.PopFront(), true
}

// Close stops the listener and every cached client
func (t *Transport) Close() error {
	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}

	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()

	for id, c := range t.clients {
		c.Close()
		delete(t.clients, id)
	}

	return err
}

func (t *Transport) enqueue(msg bully.Message) {
	t.inboxMu.Lock()
	t.inbox.PushBack(msg)
	t.inboxMu.Unlock()
}

func (t *Transport) client(to int) (*rpc.Client, error) {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()

	if c, ok := t.clients[to]; ok {
		return c, nil
	}

	addr, ok := t.peers[to]
	if !ok {
		return nil, fmt.Errorf("send to %d: %w", to, ErrUnknownPeer)
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %d at %s: %w", to, addr, err)
	}

	c := rpc.NewClient(conn)
	t.clients[to] = c

	return c, nil
}

func (t *Transport) dropClient(to int, c *rpc.Client) {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()

	if t.clients[to] == c {
		delete(t.clients, to)
	}
	c.Close()
}

// ParsePeers reads "0=host:port,1=host:port" into a peer table
func ParsePeers(spec string) (map[int]string, error) {
	peers := make(map[int]string)

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, addr, ok := strings.Cut(part, "=")
		if !ok || addr == "" {
			return nil, fmt.Errorf("%q: %w", part, ErrBadPeerSpec)
		}

		n, err := strconv.Atoi(id)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%q: %w", part, ErrBadPeerSpec)
		}

		if _, dup := peers[n]; dup {
			return nil, fmt.Errorf("%q: duplicate id %d: %w", part, n, ErrBadPeerSpec)
		}

		peers[n] = addr
	}

	return peers, nil
}
