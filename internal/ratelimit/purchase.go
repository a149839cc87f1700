package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyPurchaseUser = "purchase:user:%d"

// PurchaseLimiter throttles order creation per user so a stuck client
// cannot pile up PENDING orders. Disabled unless redis is configured.
type PurchaseLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewPurchaseLimiter(cfg config.Config) (*PurchaseLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PurchaseRate <= 0 || limitCfg.PurchaseBurst <= 0 {
		return nil, errors.New("purchase rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PurchaseLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.PurchaseRate,
		burst:   limitCfg.PurchaseBurst,
	}, nil
}

func (l *PurchaseLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PurchaseLimiter) AllowUser(ctx context.Context, userID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPurchaseUser, userID), l.rate, l.burst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func parseFloat(v string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(v), 64)
}
