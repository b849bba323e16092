package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/krantius/bully/bully"
	"github.com/krantius/bully/transport/rpcnet"
)

var (
	ErrNodeIDNotSet = errors.New("NODE_ID not set")
	ErrUnknownNode  = errors.New("unknown node")
	ErrBadMembers   = errors.New("node ids must be unique and cover 0..N-1")
)

// Duration reads "2s" style strings from JSON
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	d.Duration = v
	return nil
}

type NodeConfig struct {
	ID   int    `json:"id"`
	Addr string `json:"address"`
}

type Config struct {
	Nodes              []NodeConfig `json:"nodes"`
	OKTimeout          Duration     `json:"ok_timeout"`
	CoordinatorTimeout Duration     `json:"coordinator_timeout"`
	Tick               Duration     `json:"tick"`
	StatusPort         int          `json:"status_port"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := &Config{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return c, nil
}

// nodeSettings is everything a networked participant needs to start
type nodeSettings struct {
	Self       bully.Membership
	Peers      map[int]string
	ListenAddr string
	StatusAddr string
	Options    bully.Options
}

// resolveNodeSettings merges the config file (may be nil) with NODE_ID,
// NODE_PEERS, NODE_PORT and STATUS_PORT. The environment wins.
func resolveNodeSettings(c *Config, getenv func(string) string) (*nodeSettings, error) {
	if c == nil {
		c = &Config{}
	}

	rawID := getenv("NODE_ID")
	if rawID == "" {
		return nil, ErrNodeIDNotSet
	}

	id, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, fmt.Errorf("NODE_ID %q: %w", rawID, err)
	}

	peers := make(map[int]string, len(c.Nodes))
	for _, n := range c.Nodes {
		if _, dup := peers[n.ID]; dup {
			return nil, fmt.Errorf("node %d listed twice: %w", n.ID, ErrBadMembers)
		}
		peers[n.ID] = n.Addr
	}

	if spec := getenv("NODE_PEERS"); spec != "" {
		peers, err = rpcnet.ParsePeers(spec)
		if err != nil {
			return nil, fmt.Errorf("NODE_PEERS: %w", err)
		}
	}

	if err := checkMembers(peers); err != nil {
		return nil, err
	}

	self, ok := peers[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}

	listen := self
	if port := getenv("NODE_PORT"); port != "" {
		listen = net.JoinHostPort("", port)
	}

	statusPort := c.StatusPort
	if raw := getenv("STATUS_PORT"); raw != "" {
		statusPort, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("STATUS_PORT %q: %w", raw, err)
		}
	}

	s := &nodeSettings{
		Self:       bully.Membership{ID: id, Total: len(peers)},
		Peers:      peers,
		ListenAddr: listen,
		Options: bully.Options{
			OKTimeout:          c.OKTimeout.Duration,
			CoordinatorTimeout: c.CoordinatorTimeout.Duration,
			Tick:               c.Tick.Duration,
		},
	}

	if statusPort > 0 {
		s.StatusAddr = fmt.Sprintf(":%d", statusPort)
	}

	return s, nil
}

func checkMembers(peers map[int]string) error {
	if len(peers) == 0 {
		return fmt.Errorf("no nodes configured: %w", ErrBadMembers)
	}

	ids := make([]int, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for i, id := range ids {
		if i != id {
			return fmt.Errorf("missing node %d: %w", i, ErrBadMembers)
		}
	}

	return nil
}
