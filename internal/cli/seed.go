package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	app "github.com/R3E-Network/ordzaar/internal/app"
	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/runtime"
	"github.com/R3E-Network/ordzaar/internal/app/services/applications"
	"github.com/R3E-Network/ordzaar/internal/app/services/marketplace"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/internal/uploads"
)

type demoUser struct {
	username string
	address  string
}

var demoUsers = []demoUser{
	{username: "satoshi", address: "bc1qsatoshi0000000000000000000000000000000"},
	{username: "hal", address: "bc1qhal000000000000000000000000000000000000"},
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var supply int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo users and an approved collection",
		Long: `Load demo data into the configured store.

Registers two users, submits an application, approves it, mints the first
ordinal for the first user and lists it for sale.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.Config()
			if err != nil {
				return err
			}
			log := rootOpts.Logger(cfg)
			ctx := cmd.Context()

			files, err := uploads.New(cfg.Uploads.Dir, cfg.Server.URL, log.Component("uploads"))
			if err != nil {
				return err
			}
			if err := files.EnsurePlaceholder(); err != nil {
				return err
			}
			backend, err := runtime.OpenBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer backend.Close(context.Background())

			application, err := app.New(backend.Stores, app.Options{
				PlaceholderURL: files.PlaceholderURL(),
				Cache:          backend.Cache,
			}, log)
			if err != nil {
				return err
			}
			return seed(ctx, application, NewPrinter(cmd.OutOrStdout()), supply)
		},
	}

	cmd.Flags().IntVar(&supply, "supply", 10, "ordinals in the demo collection")
	return cmd
}

func seed(ctx context.Context, a *app.Application, out *Printer, supply int) error {
	if supply <= 0 {
		return fmt.Errorf("supply must be positive, got %d", supply)
	}
	bar := out.Progress(len(demoUsers)+4, "seeding")
	var existing []string

	for _, u := range demoUsers {
		if _, err := a.Users.Register(ctx, u.username, u.address); err != nil {
			if !apperrors.Is(err, apperrors.CodeConflict) {
				return fmt.Errorf("register %s: %w", u.username, err)
			}
			existing = append(existing, u.username)
		}
		bar.Increment()
	}

	submitted, err := a.Applications.Create(ctx, applications.CreateInput{
		Name:        "Genesis Sats",
		Description: "Demo collection of inscribed sats",
		Creator:     demoUsers[0].address,
		Price:       "0.001",
		TotalSupply: supply,
	})
	if err != nil {
		return fmt.Errorf("submit application: %w", err)
	}
	bar.Increment()

	approved, err := a.Applications.UpdateStatus(ctx, submitted.ID, application.StatusApproved)
	if err != nil {
		return fmt.Errorf("approve application: %w", err)
	}
	if approved.Collection == nil {
		return errors.New("approval did not create a collection")
	}
	bar.Increment()

	ords, err := a.Collections.OrdinalsBySlug(ctx, approved.Collection.Slug)
	if err != nil {
		return fmt.Errorf("load demo ordinals: %w", err)
	}
	if len(ords) == 0 {
		return errors.New("demo collection has no ordinals")
	}
	minted, err := a.Marketplace.Mint(ctx, marketplace.Request{
		OrdinalID: ords[0].ID,
		Provider:  "xverse",
		Address:   demoUsers[0].address,
	})
	if err != nil {
		return fmt.Errorf("mint demo ordinal: %w", err)
	}
	bar.Increment()

	if _, err := a.Ordinals.ListForSale(ctx, minted.Ordinal.ID, demoUsers[0].address, "0.002"); err != nil {
		return fmt.Errorf("list demo ordinal: %w", err)
	}
	bar.Finish()

	for _, name := range existing {
		out.Warning("user %s already existed", name)
	}

	out.Success("seeded collection %q with %d ordinals", approved.Collection.Slug, len(ords))
	return nil
}
