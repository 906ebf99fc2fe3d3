package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Env string

const (
	EnvProduction  Env = "production"
	EnvDevelopment Env = "development"
)

const (
	DefaultRestBaseURL = "https://open-api.bingx.com"
	DefaultPort        = 3000
	DefaultInterval    = "1m"
)

var defaultTriggerQty = decimal.RequireFromString("0.001")

type Config struct {
	Env      Env            `yaml:"env"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Telegram TelegramConfig `yaml:"telegram"`
	Trigger  TriggerConfig  `yaml:"trigger"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

type HTTPConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

type ExchangeConfig struct {
	APIKey         string `yaml:"api_key" validate:"required"`
	APISecret      string `yaml:"api_secret" validate:"required"`
	RestBaseURL    string `yaml:"rest_base_url" validate:"required"`
	RecvWindowMs   int64  `yaml:"recv_window_ms" validate:"gte=0,lte=60000"`
	HTTPTimeoutSec int64  `yaml:"http_timeout_sec" validate:"gte=0,lte=300"`
}

type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	AllowedChatIDs []int64 `yaml:"allowed_chat_ids"`
	AlertChatID    int64   `yaml:"alert_chat_id"`
}

type TriggerConfig struct {
	Qty      Decimal `yaml:"qty"`
	Interval string  `yaml:"interval" validate:"required"`
}

// Development reports whether error stacks may be exposed. Any env other than
// "development" (staging, test, ...) runs as production.
func (c Config) Development() bool { return c.Env == EnvDevelopment }

func (t TelegramConfig) Enabled() bool { return t.BotToken != "" }

// Load reads an optional .env file, an optional YAML file and then the process
// environment; environment values win.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
	return LoadWithLookup(path, os.LookupEnv)
}

func LoadWithLookup(path string, lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("config must contain a single YAML document")
		}
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int64) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be an integer: %q", key, v))
			return
		}
		*dst = n
	}

	var env, level string
	str("APP_ENV", &env)
	if env != "" {
		c.Env = Env(env)
	}
	str("LOG_LEVEL", &level)
	if level != "" {
		c.Log.Level = level
	}
	if v, ok := lookup("LOG_PRETTY"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_PRETTY must be a boolean: %q", v))
		} else {
			c.Log.Pretty = b
		}
	}
	port := int64(c.HTTP.Port)
	integer("PORT", &port)
	c.HTTP.Port = int(port)

	str("BINGX_API_KEY", &c.Exchange.APIKey)
	str("BINGX_SECRET_KEY", &c.Exchange.APISecret)
	str("BINGX_BASE_URL", &c.Exchange.RestBaseURL)
	integer("BINGX_RECV_WINDOW_MS", &c.Exchange.RecvWindowMs)
	integer("EXCHANGE_HTTP_TIMEOUT_SEC", &c.Exchange.HTTPTimeoutSec)

	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	integer("TELEGRAM_ALERT_CHAT_ID", &c.Telegram.AlertChatID)
	if v, ok := lookup("TELEGRAM_ALLOWED_CHAT_IDS"); ok && strings.TrimSpace(v) != "" {
		ids, err := parseChatIDs(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			c.Telegram.AllowedChatIDs = ids
		}
	}

	if v, ok := lookup("TRIGGER_QTY"); ok && strings.TrimSpace(v) != "" {
		if err := c.Trigger.Qty.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("TRIGGER_QTY %w", err))
		}
	}
	str("TRIGGER_INTERVAL", &c.Trigger.Interval)
	return errors.Join(errs...)
}

func parseChatIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOWED_CHAT_IDS has invalid chat id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) normalize() {
	c.Env = Env(strings.ToLower(strings.TrimSpace(string(c.Env))))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Exchange.APIKey = strings.TrimSpace(c.Exchange.APIKey)
	c.Exchange.APISecret = strings.TrimSpace(c.Exchange.APISecret)
	c.Exchange.RestBaseURL = strings.TrimRight(strings.TrimSpace(c.Exchange.RestBaseURL), "/")
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Trigger.Interval = strings.TrimSpace(c.Trigger.Interval)
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = EnvProduction
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultPort
	}
	if c.Exchange.RestBaseURL == "" {
		c.Exchange.RestBaseURL = DefaultRestBaseURL
	}
	if c.Trigger.Qty.IsZero() {
		c.Trigger.Qty = Decimal{Decimal: defaultTriggerQty}
	}
	if c.Trigger.Interval == "" {
		c.Trigger.Interval = DefaultInterval
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Tag() == "required" {
				return fmt.Errorf("%s is required", field)
			}
			return fmt.Errorf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
		}
		return err
	}
	if err := validateURL(c.Exchange.RestBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("exchange.rest_base_url %v", err)
	}
	if c.Trigger.Qty.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("trigger.qty must be > 0")
	}
	if c.Telegram.AlertChatID != 0 && !c.Telegram.Enabled() {
		return fmt.Errorf("telegram.alert_chat_id requires telegram.bot_token")
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
