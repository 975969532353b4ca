package config

import (
	"os"
	"strconv"
)

// DBConfig PostgreSQL 配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// SQLiteConfig SQLite 配置
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MQConfig 消息队列配置，URL 为空时不发布事件
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置，Addr 为空时关闭幂等去重
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置，Secret 为空时不校验 token
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	envString("DB_HOST", &cfg.Host)
	envInt("DB_PORT", &cfg.Port)
	envString("DB_USER", &cfg.User)
	envString("DB_PASSWORD", &cfg.Password)
	envString("DB_NAME", &cfg.Name)
	envString("DB_SSLMODE", &cfg.SSLMode)
}

func OverrideSQLiteFromEnv(cfg *SQLiteConfig) { envString("SQLITE_PATH", &cfg.Path) }

func OverrideMQFromEnv(cfg *MQConfig) { envString("MQ_URL", &cfg.URL) }

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	envString("REDIS_ADDR", &cfg.Addr)
	envString("REDIS_PASSWORD", &cfg.Password)
	envInt("REDIS_DB", &cfg.DB)
}

func OverrideJWTFromEnv(cfg *JWTConfig) { envString("JWT_SECRET", &cfg.Secret) }

func OverrideServerFromEnv(cfg *ServerConfig) { envString("SERVER_PORT", &cfg.Port) }

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envString 非空时覆盖 dst
func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt 解析失败时保留原值
func envInt(key string, dst *int) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}
