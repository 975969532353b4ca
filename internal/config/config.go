package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"milestonez/internal/llm"
	"milestonez/pkg/circuitbreaker"
	"milestonez/pkg/config"
	"milestonez/pkg/otel"
)

var ErrConfiguration = errors.New("configuration error")

const (
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"

	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Debug   bool                `yaml:"debug"`
	Server  config.ServerConfig `yaml:"server"`
	Store   StoreConfig         `yaml:"store"`
	LLM     LLMConfig           `yaml:"llm"`
	Service ServiceConfig       `yaml:"service"`
	Redis   config.RedisConfig  `yaml:"redis"` // Addr 为空时关闭幂等检查
	MQ      config.MQConfig     `yaml:"mq"`    // URL 为空时不发布事件
	JWT     config.JWTConfig    `yaml:"jwt"`   // Secret 为空时不鉴权
	OTel    otel.Config         `yaml:"otel"`
}

type StoreConfig struct {
	Driver string              `yaml:"driver"`
	SQLite config.SQLiteConfig `yaml:"sqlite"`
	DB     config.DBConfig     `yaml:"db"`
}

type LLMConfig struct {
	Provider string                `yaml:"provider"`
	Azure    llm.AzureConfig       `yaml:"azure"`
	Gemini   llm.GeminiConfig      `yaml:"gemini"`
	Breaker  circuitbreaker.Config `yaml:"breaker"`
}

type ServiceConfig struct {
	DefaultModel   string        `yaml:"default_model"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
	EvaluateAlways bool          `yaml:"evaluate_always"`
}

// Load reads configuration from MILESTONEZ_CONFIG_DIR (layered base.yaml +
// {APP_ENV}.yaml) or the single file named by MILESTONEZ_CONFIG, then applies
// environment overrides and validates the result.
// A missing single file is not an error: everything can come from the environment.
func Load() (*Config, error) {
	var cfg Config

	if dir := os.Getenv("MILESTONEZ_CONFIG_DIR"); dir != "" {
		if err := config.LoadConfig(config.GetEnv("APP_ENV", "dev"), dir, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	} else {
		path := config.GetEnv("MILESTONEZ_CONFIG", "config.yaml")
		if err := loadFile(filepath.Clean(path), &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrConfiguration, path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrConfiguration, path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// 环境变量覆盖
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.Store.DB)
	config.OverrideSQLiteFromEnv(&cfg.Store.SQLite)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)

	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}

	az := &cfg.LLM.Azure
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		az.Endpoint = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
		az.APIKey = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
		az.APIVersion = v
	}
	if v := os.Getenv("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME"); v != "" {
		setAlias(&az.ChatDeployments, "GPT 4o", v)
	}
	if v := os.Getenv("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME1"); v != "" {
		setAlias(&az.ChatDeployments, "GPT 3.5 Turbo", v)
	}
	if v := os.Getenv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME"); v != "" {
		az.EmbeddingDeployment = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.Gemini.EmbeddingModel = v
	}

	if v, err := strconv.ParseBool(os.Getenv("OTEL_ENABLED")); err == nil {
		cfg.OTel.Enabled = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTel.Endpoint = v
	}
	if v, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil {
		cfg.Debug = v
	}
}

func setAlias(m *llm.Models, alias, name string) {
	if *m == nil {
		*m = llm.Models{}
	}
	(*m)[alias] = name
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8000"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderAzure
	}
	if cfg.LLM.Gemini.Models == nil {
		cfg.LLM.Gemini.Models = llm.Models{
			"GPT 4o":        "gemini-2.5-flash",
			"GPT 3.5 Turbo": "gemini-2.5-flash-lite",
		}
	}
	if cfg.Service.DefaultModel == "" {
		cfg.Service.DefaultModel = "GPT 4o"
	}
	if cfg.Service.IdempotencyTTL <= 0 {
		cfg.Service.IdempotencyTTL = 10 * time.Minute
	}
	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "milestonez"
	}
}

// Validate reports missing credentials or unknown drivers. All failures wrap ErrConfiguration.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
	}

	switch c.LLM.Provider {
	case ProviderAzure:
		az := c.LLM.Azure
		if az.Endpoint == "" {
			return bad("AZURE_OPENAI_ENDPOINT not set")
		}
		if az.APIKey == "" {
			return bad("AZURE_OPENAI_API_KEY not set")
		}
		if len(az.ChatDeployments) == 0 {
			return bad("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME not set")
		}
		if az.EmbeddingDeployment == "" {
			return bad("AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME not set")
		}
		if _, err := az.ChatDeployments.Resolve(c.Service.DefaultModel); err != nil {
			return bad("default model: %v", err)
		}
	case ProviderGemini:
		if c.LLM.Gemini.APIKey == "" {
			return bad("GEMINI_API_KEY not set")
		}
		if _, err := c.LLM.Gemini.Models.Resolve(c.Service.DefaultModel); err != nil {
			return bad("default model: %v", err)
		}
	default:
		return bad("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Store.Driver {
	case StoreSQLite:
	case StorePostgres:
		if c.Store.DB.Host == "" || c.Store.DB.Name == "" {
			return bad("postgres store needs db host and name")
		}
	default:
		return bad("unknown store driver %q", c.Store.Driver)
	}
	return nil
}
