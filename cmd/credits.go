package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"aisuite/internal/ai/cost"
	"aisuite/internal/pkg/cache"
	"aisuite/internal/pkg/mongodb"
	"aisuite/internal/repository"
	"aisuite/internal/service"
)

var creditsCmd = &cobra.Command{
	Use:   "credits <workspace-id> <amount|unlimited>",
	Short: "Set the credit balance of a workspace",
	Long: `Set the credit balance of a workspace directly in MongoDB.
Use "unlimited" to remove the cap.`,
	Args: cobra.ExactArgs(2),
	RunE: runCredits,
}

func init() {
	rootCmd.AddCommand(creditsCmd)
}

func runCredits(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	var credits *cost.Count
	if args[1] != "unlimited" {
		c, err := cost.ParseCount(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		if c.Decimal().IsNegative() {
			return fmt.Errorf("amount must not be negative")
		}
		credits = &c
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

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	// 连接 Redis 以便清除工作空间缓存，不可用时缓存在 TTL 到期后刷新
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		if rc, err := cache.NewRedisCache(&cfg.Redis); err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, workspace cache not invalidated")
		} else {
			redisCache = rc
			defer rc.Close()
		}
	}

	svc := service.NewWorkspaceService(repository.NewWorkspaceRepo(client.Database(), redisCache))
	ws, err := svc.SetCredits(ctx, args[0], credits)
	if err != nil {
		return err
	}

	balance := "unlimited"
	if ws.CreditCount != nil {
		balance = ws.CreditCount.String()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "workspace %s credits: %s\n", ws.ID, balance)
	return nil
}
