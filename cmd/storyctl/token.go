package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"storyshelf/internal/cache"
	"storyshelf/internal/domain"
	"storyshelf/internal/repository"
	"storyshelf/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("email", "", "Email of the test user")
	tokenCmd.Flags().Bool("admin", false, "Create the user with admin role")
	_ = tokenCmd.MarkFlagRequired("email")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Create or fetch a verified test user and print a token pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		admin, _ := cmd.Flags().GetBool("admin")
		email = strings.ToLower(strings.TrimSpace(email))
		ctx := commandContext(cmd)

		cfg, pool := connect()
		defer pool.Close()

		users := repository.NewUserRepository(pool)
		u, err := users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u == nil {
			role := domain.RoleNormal
			if admin {
				role = domain.RoleAdmin
			}
			u = &domain.User{Email: email, Name: "Test User", EmailVerified: true, RoleLevel: role}
			if err := users.Create(ctx, u); err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "user created id=%d\n", u.ID)
		} else if !u.EmailVerified {
			if err := users.SetEmailVerified(ctx, u.ID); err != nil {
				return err
			}
		}

		// Issuing never touches the blacklist, so no shared KV is needed here.
		tokens := service.NewTokenService(service.TokenConfig{
			AccessSecret:  cfg.JWT.AccessSecret,
			RefreshSecret: cfg.JWT.RefreshSecret,
			AccessTTL:     cfg.JWT.AccessTTL,
			RefreshTTL:    cfg.JWT.RefreshTTL,
		}, cache.NewMemoryKV())
		pair, err := tokens.Issue(u.ID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"userId": u.ID, "email": u.Email, "tokens": pair})
	},
}
