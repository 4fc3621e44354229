package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

type Configuration struct {
	Deployment   DeploymentConfig   `mapstructure:"deployment"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Billing      BillingConfig      `mapstructure:"billing"`
	PaymentIssue PaymentIssueConfig `mapstructure:"payment_issue"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" default:"local"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" default:"info"`
}

// BillingConfig configures the Opal gateway client.
type BillingConfig struct {
	OpalAPIURL        string        `mapstructure:"opal_api_url" default:"https://api.opalpay.com/v1"`
	OpalAPIKey        string        `mapstructure:"opal_api_key"`
	OpalWebhookSecret string        `mapstructure:"opal_webhook_secret"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" default:"30s"`
	MaxRetries        int           `mapstructure:"max_retries" default:"3"`
}

// PaymentIssueConfig configures the dunning cycle.
type PaymentIssueConfig struct {
	// NotificationCooldown is the minimum interval between patient
	// notifications for the same payment issue.
	NotificationCooldown time.Duration `mapstructure:"notification_cooldown" default:"72h"`
}

// WebhookConfig configures inbound webhook reconciliation.
type WebhookConfig struct {
	// NotFoundRetryAttempts bounds the wait for a locally lagging write
	// when a webhook references a subscription not yet visible.
	NotFoundRetryAttempts int `mapstructure:"not_found_retry_attempts" default:"5"`
	// NotFoundRetryBackoff is the fixed delay between those attempts.
	NotFoundRetryBackoff time.Duration `mapstructure:"not_found_retry_backoff" default:"5s"`
}

// NewConfig loads configuration from config files and WELLPATH_* environment
// variables. A missing config file is not an error; env vars alone are a
// valid configuration.
func NewConfig() (*Configuration, error) {
	v := viper.New()

	// Load .env if present, ignore if missing
	_ = godotenv.Load()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WELLPATH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.WithError(err).
				WithHint("Failed to read config file").
				Mark(ierr.ErrValidation)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to unmarshal configuration").
			Mark(ierr.ErrValidation)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.RunModeLocal))
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("billing.opal_api_url", "https://api.opalpay.com/v1")
	v.SetDefault("billing.request_timeout", "30s")
	v.SetDefault("billing.max_retries", 3)
	v.SetDefault("payment_issue.notification_cooldown", "72h")
	v.SetDefault("webhook.not_found_retry_attempts", 5)
	v.SetDefault("webhook.not_found_retry_backoff", "5s")
}

func (c *Configuration) Validate() error {
	if err := c.Deployment.Mode.Validate(); err != nil {
		return err
	}
	if c.Webhook.NotFoundRetryAttempts < 0 {
		return ierr.NewError("webhook not_found_retry_attempts cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if c.PaymentIssue.NotificationCooldown < 0 {
		return ierr.NewError("payment_issue notification_cooldown cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetDefaultConfig returns a development configuration used by scripts and
// tests that do not load a config file.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.RunModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			OpalAPIURL:     "https://api.opalpay.com/v1",
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
		},
		PaymentIssue: PaymentIssueConfig{NotificationCooldown: 72 * time.Hour},
		Webhook: WebhookConfig{
			NotFoundRetryAttempts: 5,
			NotFoundRetryBackoff:  5 * time.Second,
		},
	}
}
