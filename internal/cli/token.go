package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/ordzaar/internal/middleware"
)

// TokenOptions are the flags of the token command.
type TokenOptions struct {
	UserID  string
	Address string
	Role    string
	TTL     time.Duration
	Secret  string
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token",
		Long: `Issue an HS256 bearer token for the API.

The signing secret defaults to JWT_SECRET. Tokens carry the user id, the
wallet address used for ownership checks and the role.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.Secret
			if secret == "" {
				cfg, err := rootOpts.Config()
				if err != nil {
					return err
				}
				secret = cfg.Security.JWTSecret
			}
			if secret == "" {
				return errors.New("no signing secret: set JWT_SECRET or pass --secret")
			}
			switch opts.Role {
			case middleware.RoleUser, middleware.RoleAdmin:
			default:
				return fmt.Errorf("invalid role %q", opts.Role)
			}

			token, err := middleware.IssueToken([]byte(secret), opts.UserID, opts.Address, opts.Role, opts.TTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id placed in the token")
	cmd.Flags().StringVar(&opts.Address, "address", "", "wallet address placed in the token")
	cmd.Flags().StringVar(&opts.Role, "role", middleware.RoleUser, "role (user|admin)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
