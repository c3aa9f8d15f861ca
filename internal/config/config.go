package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scoutline/vendorscout/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ResearchConfig configures run behavior.
type ResearchConfig struct {
	OutputPath      string        `yaml:"output_path" mapstructure:"output_path"`
	MaxPages        int           `yaml:"max_pages" mapstructure:"max_pages"`
	RunBudget       time.Duration `yaml:"run_budget" mapstructure:"run_budget"`
	MaxContentChars int           `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	PresetsPath     string        `yaml:"presets_path" mapstructure:"presets_path"`
}

// NotionConfig holds Notion API credentials and the vendor database ID.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// SalesforceConfig holds Salesforce username-password auth settings. The
// OAuth username-password flow also needs the connected app's consumer key
// and secret.
type SalesforceConfig struct {
	Domain         string `yaml:"domain" mapstructure:"domain"`
	Username       string `yaml:"username" mapstructure:"username"`
	Password       string `yaml:"password" mapstructure:"password"`
	SecurityToken  string `yaml:"security_token" mapstructure:"security_token"`
	ConsumerKey    string `yaml:"consumer_key" mapstructure:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret" mapstructure:"consumer_secret"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty file argument
// searches the standard locations; an explicit path must exist.
func Load(file string) (*Config, error) {
	v := viper.New()

	// Config file
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("vendorscout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.vendorscout")
		v.AddConfigPath("/etc/vendorscout")
	}

	// Environment
	v.SetEnvPrefix("VENDORSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one, including empty-string credentials:
	// AutomaticEnv only surfaces keys viper already knows about, so a key
	// without a default would be unreachable from the environment.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "vendorscout.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("firecrawl.key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("research.output_path", "vendor_results.json")
	v.SetDefault("research.max_pages", 0)
	v.SetDefault("research.run_budget", "30m")
	v.SetDefault("research.max_content_chars", 80000)
	v.SetDefault("research.presets_path", "presets.yaml")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("salesforce.domain", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.password", "")
	v.SetDefault("salesforce.security_token", "")
	v.SetDefault("salesforce.consumer_key", "")
	v.SetDefault("salesforce.consumer_secret", "")
	v.SetDefault("pricing.firecrawl.plan_monthly", 19.00)
	v.SetDefault("pricing.firecrawl.credits_included", 3000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional unless explicitly named)
	if err := v.ReadInConfig(); err != nil {
		if file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Per-model token rates only come from the file; fall back to the
	// built-in table when absent.
	if len(cfg.Pricing.Anthropic) == 0 {
		cfg.Pricing.Anthropic = cost.DefaultRates().Anthropic
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete for the given mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "research":
		problems = c.researchProblems()
	case "serve":
		problems = c.researchProblems()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "runs":
		problems = c.storeProblems()
	case "export-notion":
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.DatabaseID == "" {
			problems = append(problems, "notion.database_id is required")
		}
	case "export-salesforce":
		if c.Salesforce.Domain == "" {
			problems = append(problems, "salesforce.domain is required")
		}
		if c.Salesforce.Username == "" {
			problems = append(problems, "salesforce.username is required")
		}
		if c.Salesforce.Password == "" {
			problems = append(problems, "salesforce.password is required")
		}
		if c.Salesforce.ConsumerKey == "" {
			problems = append(problems, "salesforce.consumer_key is required")
		}
		if c.Salesforce.ConsumerSecret == "" {
			problems = append(problems, "salesforce.consumer_secret is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) researchProblems() []string {
	var problems []string
	if c.Firecrawl.Key == "" {
		problems = append(problems, "firecrawl.key is required")
	}
	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required")
	}
	return append(problems, c.storeProblems()...)
}

func (c *Config) storeProblems() []string {
	var problems []string
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
