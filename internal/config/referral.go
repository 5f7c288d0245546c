package config

import (
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReferralConfig holds the tunables that operators may change without a restart.
type ReferralConfig struct {
	LinkBaseURL         string        `mapstructure:"link_base_url"`
	TrendingLimit       int           `mapstructure:"trending_limit"`
	MaxIncentivePercent float64       `mapstructure:"max_incentive_percent"`
	ResolverCacheTTL    time.Duration `mapstructure:"resolver_cache_ttl"`
	StatementCurrency   string        `mapstructure:"statement_currency"`
}

func DefaultReferralConfig() ReferralConfig {
	return ReferralConfig{
		LinkBaseURL:         "https://dealshark.com",
		TrendingLimit:       10,
		MaxIncentivePercent: 100,
		ResolverCacheTTL:    30 * time.Second,
		StatementCurrency:   "GBP",
	}
}

type ReferralConfigHolder struct {
	current atomic.Value // holds ReferralConfig
}

// NewStaticReferralConfigHolder returns a holder that never reloads.
func NewStaticReferralConfigHolder(cfg ReferralConfig) *ReferralConfigHolder {
	holder := &ReferralConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReferralConfigHolder(appCfg Config, log *zap.Logger) (*ReferralConfigHolder, error) {
	v := viper.New()

	if appCfg.ReferralConfigPath != "" {
		v.SetConfigFile(appCfg.ReferralConfigPath)
	} else {
		v.SetConfigName("referral")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/dealshark")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DEALSHARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReferralConfig()
	v.SetDefault("referral.link_base_url", defaults.LinkBaseURL)
	v.SetDefault("referral.trending_limit", defaults.TrendingLimit)
	v.SetDefault("referral.max_incentive_percent", defaults.MaxIncentivePercent)
	v.SetDefault("referral.resolver_cache_ttl", defaults.ResolverCacheTTL)
	v.SetDefault("referral.statement_currency", defaults.StatementCurrency)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	cfg := DefaultReferralConfig()
	if err := v.UnmarshalKey("referral", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateReferralConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReferralConfigHolder(cfg)
	if !watch {
		return holder, nil
	}

	log = log.Named("referral.config")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultReferralConfig()
		if err := v.UnmarshalKey("referral", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := ValidateReferralConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ReferralConfigHolder) Get() ReferralConfig {
	if h == nil {
		return DefaultReferralConfig()
	}
	return h.current.Load().(ReferralConfig)
}

func ValidateReferralConfig(cfg ReferralConfig) error {
	base, err := url.Parse(strings.TrimSpace(cfg.LinkBaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.New("referral.link_base_url must be an absolute url")
	}
	if cfg.TrendingLimit <= 0 {
		return errors.New("referral.trending_limit must be positive")
	}
	if cfg.MaxIncentivePercent <= 0 || cfg.MaxIncentivePercent > 100 {
		return errors.New("referral.max_incentive_percent must be in (0, 100]")
	}
	if cfg.ResolverCacheTTL < 0 {
		return errors.New("referral.resolver_cache_ttl cannot be negative")
	}
	if len(strings.TrimSpace(cfg.StatementCurrency)) != 3 {
		return errors.New("referral.statement_currency must be an ISO 4217 code")
	}
	return nil
}
