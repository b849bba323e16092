package main

import (
	"fmt"

	"github.com/krantius/bully/scenario"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cfg := scenario.DefaultConfig(5, -1, -1)
	var realtime bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Runs a whole group in process, failing one participant and optionally bringing it back",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid scenario: %w", err)
			}

			var (
				r   *scenario.Report
				err error
			)
			if realtime {
				r, err = scenario.RunRealtime(cmd.Context(), cfg)
			} else {
				r, err = scenario.Simulate(cfg)
			}
			if err != nil {
				return err
			}

			r.Print(cmd.OutOrStdout())
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&cfg.Participants, "participants", "n", cfg.Participants, "Group size")
	f.IntVar(&cfg.Offline, "offline", cfg.Offline, "Participant that goes offline (0 to N-1)")
	f.IntVar(&cfg.Detector, "detector", cfg.Detector, "Participant that detects the failure and forces an election (0 to N-1)")
	f.BoolVar(&cfg.Returns, "returns", cfg.Returns, "Whether the offline participant comes back")
	f.DurationVar(&cfg.FailAt, "fail-at", cfg.FailAt, "When the participant goes offline")
	f.DurationVar(&cfg.DetectAt, "detect-at", cfg.DetectAt, "When the detector forces an election")
	f.DurationVar(&cfg.ReturnAt, "return-at", cfg.ReturnAt, "When the participant comes back")
	f.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Length of the run")
	f.DurationVar(&cfg.Tick, "tick", cfg.Tick, "Loop interval")
	f.DurationVar(&cfg.OKTimeout, "ok-timeout", cfg.OKTimeout, "How long to wait for an OK before self-promoting")
	f.DurationVar(&cfg.CoordinatorTimeout, "coordinator-timeout", cfg.CoordinatorTimeout, "How long to wait for an announcement before re-electing")
	f.BoolVar(&realtime, "realtime", false, "Run on the wall clock instead of stepping a simulated one")

	cmd.MarkFlagRequired("offline")
	cmd.MarkFlagRequired("detector")

	return cmd
}
