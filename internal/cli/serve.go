package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/ordzaar/internal/app/runtime"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.Config()
			if err != nil {
				return err
			}
			log := rootOpts.Logger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := runtime.NewApplication(ctx, cfg, log)
			if err != nil {
				return err
			}

			runErr := application.Run(ctx)
			log.Info("shutting down")
			if err := application.Shutdown(context.Background()); err != nil {
				log.WithError(err).Error("shutdown")
			}
			return runErr
		},
	}
}
