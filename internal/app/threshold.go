package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/whytehoux-projecty/Bank-sub001/internal/store"
)

// ThresholdSettingKey is the system_settings key holding the verification threshold.
const ThresholdSettingKey = "bill_payment_verification_threshold"

// ThresholdProvider resolves the bill payment verification threshold from the settings
// table, through a short-lived Redis cache, falling back to a configured default.
type ThresholdProvider struct {
	settings store.SettingsRepository
	cache    redis.UniversalClient
	cacheKey string
	cacheTTL time.Duration
	fallback decimal.Decimal
}

// NewThresholdProvider creates a provider. A nil cache or a zero ttl disables caching.
func NewThresholdProvider(settings store.SettingsRepository, cache redis.UniversalClient, keyPrefix string, cacheTTL time.Duration, fallback decimal.Decimal) *ThresholdProvider {
	prefix := strings.TrimSuffix(strings.TrimSpace(keyPrefix), ":")
	if prefix == "" {
		prefix = "aurum"
	}
	return &ThresholdProvider{
		settings: settings,
		cache:    cache,
		cacheKey: prefix + ":settings:" + ThresholdSettingKey,
		cacheTTL: cacheTTL,
		fallback: fallback,
	}
}

// CurrentThreshold never fails; unavailable or invalid settings yield the default.
func (p *ThresholdProvider) CurrentThreshold(ctx context.Context) decimal.Decimal {
	if p.cacheEnabled() {
		cached, err := p.cache.Get(ctx, p.cacheKey).Result()
		if err == nil {
			if value, parseErr := parseThresholdValue(cached); parseErr == nil {
				return value
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("level=warn component=threshold msg=\"threshold cache read failed\" err=%v", err)
		}
	}

	if p.settings == nil {
		return p.fallback
	}

	raw, err := p.settings.GetSetting(ctx, ThresholdSettingKey)
	if err != nil {
		if !errors.Is(err, store.ErrSettingNotFound) {
			log.Printf("level=warn component=threshold msg=\"threshold setting unavailable; using default\" default=%s err=%v", p.fallback.String(), err)
		}
		return p.fallback
	}

	value, err := parseThresholdValue(raw)
	if err != nil {
		log.Printf("level=warn component=threshold msg=\"invalid threshold setting; using default\" value=%q default=%s", raw, p.fallback.String())
		return p.fallback
	}

	if p.cacheEnabled() {
		if err := p.cache.Set(ctx, p.cacheKey, value.String(), p.cacheTTL).Err(); err != nil {
			log.Printf("level=warn component=threshold msg=\"threshold cache write failed\" err=%v", err)
		}
	}
	return value
}

func (p *ThresholdProvider) cacheEnabled() bool {
	return p.cache != nil && p.cacheTTL > 0
}

var errNonPositiveThreshold = errors.New("threshold must be positive")

func parseThresholdValue(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, errNonPositiveThreshold
	}
	return value, nil
}
