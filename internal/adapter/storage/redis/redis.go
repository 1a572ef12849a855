package redis

import (
	"context"
	"fmt"

	"digital-wallet/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient creates the process-wide Redis client and verifies connectivity.
// The settlement claim timeout bounds every read and write.
func NewClient(ctx context.Context, cfg config.RedisConfig, settlement config.SettlementConfig, log zerolog.Logger) (*goredis.Client, error) {
	opts := &goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if settlement.ClaimTimeout > 0 {
		opts.ReadTimeout = settlement.ClaimTimeout
		opts.WriteTimeout = settlement.ClaimTimeout
	}
	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Dur("claim_timeout", settlement.ClaimTimeout).
		Msg("Redis connection established")

	return client, nil
}
