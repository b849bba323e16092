package main

import (
	"fmt"
	"os"

	"github.com/krantius/bully/bully"
	"github.com/krantius/bully/shared/logging"
	"github.com/krantius/bully/transport/rpcnet"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newNodeCmd() *cobra.Command {
	var (
		configPath     string
		reannounce     bool
		electOnStartup bool
	)

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Runs a single participant over TCP (NODE_ID, NODE_PEERS, NODE_PORT, STATUS_PORT)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var c *Config
			if configPath != "" {
				var err error
				if c, err = LoadConfig(configPath); err != nil {
					return err
				}
			}

			s, err := resolveNodeSettings(c, os.Getenv)
			if err != nil {
				return fmt.Errorf("invalid node settings: %w", err)
			}

			s.Options.ReannounceOnChallenge = reannounce
			s.Options.ElectOnStartup = electOnStartup

			tr, err := rpcnet.New(s.Self.ID, s.Peers)
			if err != nil {
				return err
			}
			defer tr.Close()

			if err := tr.Listen(s.ListenAddr); err != nil {
				return err
			}

			node, err := bully.NewNode(s.Self, tr, nil, s.Options)
			if err != nil {
				return err
			}

			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error {
				return node.Run(ctx)
			})

			if s.StatusAddr != "" {
				eg.Go(func() error {
					return node.ServeAPI(ctx, s.StatusAddr)
				})
			}

			err = eg.Wait()

			st := node.Status()
			logging.For(st.ID).Infof("exiting, final coordinator %d", st.Coordinator)

			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "JSON cluster file")
	f.BoolVar(&reannounce, "reannounce", true, "Leader resends its announcement when challenged")
	f.BoolVar(&electOnStartup, "elect-on-startup", true, "Every participant starts an election when it joins")

	return cmd
}
