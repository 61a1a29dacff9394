package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string
		AdminChatID int64   `mapstructure:"admin_chat_id"`
		ChatIDs     []int64 `mapstructure:"chat_ids"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Stale struct {
		HorizonDays int    `mapstructure:"horizon_days"`
		Schedule    string `mapstructure:"schedule"`
	} `mapstructure:"stale"`
}

// Load reads the YAML file at path. Values from a .env file in envFile (if
// it exists) and from APP_* variables override it, e.g. APP_POSTGRES_DSN.
func Load(path, envFile string) (Config, error) {
	var c Config
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return c, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("stale.horizon_days", 30)
	v.SetDefault("stale.schedule", "0 9 * * *")
	// AutomaticEnv only sees keys viper already knows about
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)

	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		return errors.New("config: postgres.dsn is required")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("config: http.addr is required")
	}
	if _, err := cron.ParseStandard(c.Stale.Schedule); err != nil {
		return fmt.Errorf("config: stale.schedule: %w", err)
	}
	return nil
}

// NotifyChats is the admin chat followed by the extra chats.
func (c Config) NotifyChats() []int64 {
	return append([]int64{c.Telegram.AdminChatID}, c.Telegram.ChatIDs...)
}
