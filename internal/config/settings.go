package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/fragment"
	"github.com/vkoval/fragsnipe/internal/ton"
)

// Settings are the resolved runtime options shared by all commands.
type Settings struct {
	FragmentBaseURL string
	FragmentCookies map[string]string
	Wallet          ton.Config
	LedgerPath      string
	ServerAddr      string
	Interval        time.Duration
	MaxPriceTON     int64
}

// Load resolves settings from viper (config file, env, bound flags).
func Load() (Settings, error) {
	seed := viper.GetString("wallet.seed")
	if seed == "" {
		return Settings{}, fmt.Errorf("%w: wallet.seed (FRAGSNIPE_WALLET_SEED)", common.ErrMissingConfig)
	}

	interval := viper.GetDuration("monitor.interval")
	if interval <= 0 {
		interval = time.Second
	}

	ledgerPath := viper.GetString("ledger.db_path")
	if ledgerPath == "" {
		ledgerPath = "$HOME/.local/share/fragsnipe/ledger.db"
	}

	return Settings{
		FragmentBaseURL: viper.GetString("fragment.base_url"),
		FragmentCookies: fragment.ParseCookies(viper.GetString("fragment.cookies")),
		Wallet: ton.Config{
			Seed:      seed,
			ConfigURL: viper.GetString("wallet.network_config_url"),
		},
		LedgerPath:  ExpandPath(ledgerPath),
		ServerAddr:  viper.GetString("server.addr"),
		Interval:    interval,
		MaxPriceTON: viper.GetInt64("monitor.max_price_ton"),
	}, nil
}
