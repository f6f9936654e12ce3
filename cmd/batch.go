package main

import (
	"fmt"
	"strconv"

	"github.com/okian/xpand/pkg/logger"
	"github.com/spf13/cobra"
)

func newRefreshCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild matches for every active project, then sweep SLAs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			comps, err := wire(ctx, c.cfg, logger.Get())
			if err != nil {
				return err
			}
			defer func() { _ = comps.Close() }()

			sum, err := comps.service.RunRefresh(ctx)
			if perr := printJSON(cmd, sum); perr != nil {
				return perr
			}
			return err
		},
	}
}

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Flag vendors whose matches aged past their response SLA",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			comps, err := wire(ctx, c.cfg, logger.Get())
			if err != nil {
				return err
			}
			defer func() { _ = comps.Close() }()

			res, err := comps.service.RunSweep(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newRebuildCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <project-id>",
		Short: "Rebuild the matches of one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid project id %q", args[0])
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			comps, err := wire(ctx, c.cfg, logger.Get())
			if err != nil {
				return err
			}
			defer func() { _ = comps.Close() }()

			res, err := comps.service.RebuildMatches(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}
