package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the intake bucket and enrich new batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.bucketIntake()
			if err != nil {
				return err
			}
			if once {
				n, err := svc.Drain(ctx)
				a.logger.Info("Drained intake bucket", zap.Int("batches", n))
				return err //nolint:wrapcheck // already descriptive
			}
			return svc.Watch(ctx, a.cfg.Intake.PollInterval()) //nolint:wrapcheck // already descriptive
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "drain pending batches once and exit")
	return cmd
}
