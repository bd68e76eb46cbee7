package config

import (
	"fmt"
	"strings"

	"github.com/dujiao-next/commerce-ledger/internal/constants"
	"github.com/dujiao-next/commerce-ledger/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Tokens   TokensConfig   `mapstructure:"tokens"`
	Stock    StockConfig    `mapstructure:"stock"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Authz    AuthzConfig    `mapstructure:"authz"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host                     string `mapstructure:"host"`
	Port                     string `mapstructure:"port"`
	Mode                     string `mapstructure:"mode"` // debug / release
	ReadHeaderTimeoutSeconds int    `mapstructure:"read_header_timeout_seconds"`
	WriteTimeoutSeconds      int    `mapstructure:"write_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `mapstructure:"shutdown_timeout_seconds"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Stdout:     c.Stdout,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// TokenPackConfig 代币包定义
type TokenPackConfig struct {
	ID      string `mapstructure:"id"`
	Tokens  int64  `mapstructure:"tokens"`
	PriceDA string `mapstructure:"price_da"`
}

// Price 代币包价格，格式错误时为 0
func (p TokenPackConfig) Price() decimal.Decimal {
	price, err := decimal.NewFromString(strings.TrimSpace(p.PriceDA))
	if err != nil {
		return decimal.Zero
	}
	return price
}

// TokensConfig 代币经济配置
type TokensConfig struct {
	UnlockCost      int64             `mapstructure:"unlock_cost"`
	ProMultiplier   float64           `mapstructure:"pro_multiplier"`
	ProTiers        []string          `mapstructure:"pro_tiers"`
	FullAccessTiers []string          `mapstructure:"full_access_tiers"` // 免费解锁订单的套餐等级
	Packs           []TokenPackConfig `mapstructure:"packs"`
}

// FindPack 按 ID 查找代币包
func (c TokensConfig) FindPack(id string) (TokenPackConfig, bool) {
	id = strings.TrimSpace(id)
	for _, pack := range c.Packs {
		if strings.EqualFold(pack.ID, id) {
			return pack, true
		}
	}
	return TokenPackConfig{}, false
}

// StockConfig 库存账本配置
type StockConfig struct {
	LockTTLSeconds  int  `mapstructure:"lock_ttl_seconds"`
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"`
	AlertEnabled    bool `mapstructure:"alert_enabled"`
}

// WorkerConfig 后台任务配置
type WorkerConfig struct {
	LedgerVerifyIntervalSeconds int `mapstructure:"ledger_verify_interval_seconds"`
}

// AuthzConfig 后台授权配置
type AuthzConfig struct {
	BootstrapAdminIDs []uint `mapstructure:"bootstrap_admin_ids"` // 启动时授予 ledger_admin 的管理员
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	WriteRateLimit RateLimitConfig `mapstructure:"write_rate_limit"` // 用户侧写接口（解锁、购买申请）
}

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults(viper.GetViper())

	// 环境变量支持（例如 database.dsn -> CL_DATABASE_DSN）
	viper.SetEnvPrefix("CL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_header_timeout_seconds", 10)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "ledger.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.stdout", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/ledger.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "cl")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		constants.QueueDefault:  10,
		constants.QueueCritical: 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
		"X-User-ID",
		"X-Admin-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("tokens.unlock_cost", constants.DefaultUnlockCost)
	v.SetDefault("tokens.pro_multiplier", 1.5)
	v.SetDefault("tokens.pro_tiers", []string{constants.PlanTierPro})
	v.SetDefault("tokens.full_access_tiers", []string{})
	v.SetDefault("tokens.packs", []map[string]interface{}{
		{"id": "starter", "tokens": 50, "price_da": "500"},
		{"id": "standard", "tokens": 120, "price_da": "1000"},
		{"id": "bulk", "tokens": 300, "price_da": "2200"},
	})
	v.SetDefault("stock.lock_ttl_seconds", 10)
	v.SetDefault("stock.cache_ttl_seconds", 300)
	v.SetDefault("stock.alert_enabled", true)
	v.SetDefault("worker.ledger_verify_interval_seconds", 3600)
	v.SetDefault("authz.bootstrap_admin_ids", []uint{1})
	v.SetDefault("security.write_rate_limit.window_seconds", 60)
	v.SetDefault("security.write_rate_limit.max_requests", 30)
}
