package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"NewsRadar/internal/batcher"
	"NewsRadar/internal/classifier"
)

const (
	defaultTimezone = "Asia/Taipei"
	configPathEnv   = "NEWSRADAR_CONFIG"
	webhookURLEnv   = "NEWS_WEBHOOK_URL"
	httpTimeoutEnv  = "HTTP_TIMEOUT"
	maxItemsEnv     = "MAX_ITEMS_PER_MARKET"
	stateFileEnv    = "NEWSRADAR_STATE_FILE"
	storeDriverEnv  = "NEWSRADAR_STORE_DRIVER"
	databaseDSNEnv  = "NEWSRADAR_DATABASE_DSN"
	logLevelEnv     = "NEWSRADAR_LOG_LEVEL"
	timezoneEnv     = "NEWSRADAR_TIMEZONE"
)

// Config holds every setting of a run. It is built once in main and passed
// down explicitly.
type Config struct {
	Logging  LoggingConfig        `yaml:"logging"`
	Webhook  WebhookConfig        `yaml:"webhook"`
	Store    StoreConfig          `yaml:"store"`
	Pipeline PipelineConfig       `yaml:"pipeline"`
	Quotes   QuoteConfig          `yaml:"quotes"`
	Limits   batcher.Limits       `yaml:"limits"`
	Labels   batcher.Labels       `yaml:"labels"`
	Keywords *classifier.Keywords `yaml:"keywords"`
	Topics   []TopicConfig        `yaml:"topics"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// WebhookConfig describes the delivery endpoint.
type WebhookConfig struct {
	URL            string `yaml:"url"`
	Username       string `yaml:"username"`
	AvatarURL      string `yaml:"avatarUrl"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	MaxRetries     int    `yaml:"maxRetries"`
	SendIntervalMS int    `yaml:"sendIntervalMs"`
	// Salvage retries a rejected call item by item when the endpoint
	// names the malformed element.
	Salvage bool `yaml:"salvage"`
}

// Timeout returns the per-call timeout.
func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// SendInterval is the pause between consecutive webhook calls.
func (w WebhookConfig) SendInterval() time.Duration {
	return time.Duration(w.SendIntervalMS) * time.Millisecond
}

// StoreConfig selects and sizes the deliverable store.
type StoreConfig struct {
	Driver    string `yaml:"driver"` // file or postgres
	Path      string `yaml:"path"`
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	Retention int    `yaml:"retention"`
}

// PipelineConfig tunes the per-topic flow.
type PipelineConfig struct {
	StaleHours         int    `yaml:"staleHours"`
	StaleOrder         string `yaml:"staleOrder"` // before_dedupe or after_dedupe
	MaxItemsPerTopic   int    `yaml:"maxItemsPerTopic"`
	FeedItemLimit      int    `yaml:"feedItemLimit"`
	Identity           string `yaml:"identity"` // link (default) or headline
	AnnounceEmpty      bool   `yaml:"announceEmpty"`
	ParallelTopics     bool   `yaml:"parallelTopics"`
	SessionLabel       bool   `yaml:"sessionLabel"`
	TickerHints        bool   `yaml:"tickerHints"`
	ClassifyPublisher  bool   `yaml:"classifyPublisher"`
	HTTPTimeoutSeconds int    `yaml:"httpTimeoutSeconds"`
	Timezone           string `yaml:"timezone"`
	FooterText         string `yaml:"footerText"`
	DefaultSource      string `yaml:"defaultSource"`

	location *time.Location `yaml:"-"`
}

// Location resolves the display timezone.
func (p PipelineConfig) Location() *time.Location {
	if p.location != nil {
		return p.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.FixedZone(defaultTimezone, 8*3600)
	}
	return loc
}

// StaleWindow is the maximum accepted item age.
func (p PipelineConfig) StaleWindow() time.Duration {
	return time.Duration(p.StaleHours) * time.Hour
}

// HTTPTimeout bounds feed and quote requests.
func (p PipelineConfig) HTTPTimeout() time.Duration {
	return time.Duration(p.HTTPTimeoutSeconds) * time.Second
}

// QuoteConfig controls the cosmetic header quotes.
type QuoteConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// TopicConfig describes a single market feed.
type TopicConfig struct {
	Name        string       `yaml:"name"`
	Kind        string       `yaml:"kind"`
	Title       string       `yaml:"title"`
	Label       string       `yaml:"label"`
	Scanner     string       `yaml:"scanner"`
	Queries     []string     `yaml:"queries"`
	Locale      LocaleConfig `yaml:"locale"`
	QuoteSymbol string       `yaml:"quoteSymbol"`
	MaxItems    int          `yaml:"maxItems"`
}

// LocaleConfig holds the Google News locale hints.
type LocaleConfig struct {
	Language string `yaml:"hl"`
	Region   string `yaml:"gl"`
	Edition  string `yaml:"ceid"`
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides. An explicit path wins over NEWSRADAR_CONFIG. A
// missing or unparsable file is logged and ignored.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			fileCfg.Topics = nil
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				if len(fileCfg.Topics) == 0 {
					fileCfg.Topics = cfg.Topics
				}
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv(webhookURLEnv)); v != "" {
		c.Webhook.URL = v
	}

	if v := os.Getenv(httpTimeoutEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.HTTPTimeoutSeconds = n
			c.Webhook.TimeoutSeconds = n
		} else {
			log.Printf("config: ignoring %s=%q", httpTimeoutEnv, v)
		}
	}

	if v := os.Getenv(maxItemsEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.MaxItemsPerTopic = n
		} else {
			log.Printf("config: ignoring %s=%q", maxItemsEnv, v)
		}
	}

	if v := os.Getenv(stateFileEnv); v != "" {
		c.Store.Path = v
	}

	if v := os.Getenv(storeDriverEnv); v != "" {
		c.Store.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Store.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(timezoneEnv); v != "" {
		c.Pipeline.Timezone = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Pipeline.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		c.Pipeline.Timezone = defaultTimezone
		loc = PipelineConfig{}.Location()
	}
	c.Pipeline.location = loc
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Webhook: WebhookConfig{
			Username:       "News Radar",
			TimeoutSeconds: 12,
			MaxRetries:     2,
			SendIntervalMS: 500,
			Salvage:        true,
		},
		Store: StoreConfig{
			Driver:    "file",
			Path:      "data/sent_news.txt",
			Table:     "delivered_keys",
			Retention: 1500,
		},
		Pipeline: PipelineConfig{
			StaleHours:         12,
			StaleOrder:         "before_dedupe",
			MaxItemsPerTopic:   8,
			FeedItemLimit:      50,
			Identity:           "link",
			SessionLabel:       true,
			TickerHints:        true,
			HTTPTimeoutSeconds: 12,
			Timezone:           defaultTimezone,
			FooterText:         "Smart News Radar System",
			DefaultSource:      "Google News",
		},
		Quotes: QuoteConfig{
			Enabled:  true,
			Endpoint: "https://query1.finance.yahoo.com/v8/finance/chart",
		},
		Limits: batcher.DefaultLimits(),
		Labels: batcher.DefaultLabels(),
		Topics: defaultTopics(),
	}
}

func defaultTopics() []TopicConfig {
	zhTW := LocaleConfig{Language: "zh-TW", Region: "TW", Edition: "TW:zh-Hant"}
	return []TopicConfig{
		{
			Name:        "tw",
			Kind:        "PRIMARY_MARKET",
			Title:       "🏹 台股市場快訊",
			Label:       "台股",
			Scanner:     "googlenews",
			Queries:     []string{"台股 OR 台灣 股市 OR 加權指數 OR 台指期 OR 台積電"},
			Locale:      zhTW,
			QuoteSymbol: "^TWII",
		},
		{
			Name:        "us",
			Kind:        "SECONDARY_MARKET",
			Title:       "⚡ 美股市場快訊",
			Label:       "美股",
			Scanner:     "googlenews",
			Queries:     []string{"美股 OR 美國 股市 OR 道瓊 OR 那斯達克 OR 標普500 OR 聯準會 OR Fed"},
			Locale:      zhTW,
			QuoteSymbol: "^GSPC",
		},
		{
			Name:        "crypto",
			Kind:        "CRYPTO_MARKET",
			Title:       "🪙 Crypto 市場快訊",
			Label:       "Crypto",
			Scanner:     "googlenews",
			Queries:     []string{"比特幣 OR 以太坊 OR 加密貨幣 OR Bitcoin OR Ethereum"},
			Locale:      zhTW,
			QuoteSymbol: "BTC-USD",
		},
	}
}
