package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"aisuite/internal/model/user"
	"aisuite/internal/pkg/mongodb"
	"aisuite/internal/repository"
	"aisuite/internal/service"
)

var initAdminCmd = &cobra.Command{
	Use:   "init-admin",
	Short: "Create the admin user and its workspace",
	Long: `Create an admin user with a personal workspace.
Credentials come from INIT_ADMIN_USERNAME, INIT_ADMIN_EMAIL and INIT_ADMIN_PASSWORD.`,
	RunE: runInitAdmin,
}

func init() {
	rootCmd.AddCommand(initAdminCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runInitAdmin(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	username := envOr("INIT_ADMIN_USERNAME", "admin")
	email := envOr("INIT_ADMIN_EMAIL", "admin@example.com")
	passwordPlain := envOr("INIT_ADMIN_PASSWORD", "admin123")

	initialCredits, err := cfg.Billing.InitialCreditCount()
	if err != nil {
		return err
	}

	client, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close MongoDB connection")
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db := client.Database()
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// 只用于创建用户，不签发 token
	authSvc := service.NewAuthService(
		repository.NewUserRepo(db),
		repository.NewWorkspaceRepo(db, nil),
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		initialCredits,
	)

	res, err := authSvc.Register(ctx, service.RegisterInput{
		Username: username,
		Email:    email,
		Password: passwordPlain,
		Role:     user.RoleAdmin,
	})
	if errors.Is(err, service.ErrUserAlreadyExists) || errors.Is(err, service.ErrEmailTaken) {
		log.Info().Str("username", username).Msg("admin user already exists, skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Admin initialized: username=%s workspace=%s role=admin\n", res.User.Username, res.Workspace.ID)
	return nil
}
