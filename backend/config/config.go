package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Scheduling   SchedulingConfig   `mapstructure:"scheduling"`
	Notification NotificationConfig `mapstructure:"notification"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// Token 由外部身份服务签发，本服务只负责校验
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SchedulingConfig 班次可见性分级释放与冲突检测配置
type SchedulingConfig struct {
	DefaultTieredReleaseHours int           `mapstructure:"default_tiered_release_hours"` // 未显式指定 release_at 时，开班前多少小时开放给 tier_1
	Tier2Offset               time.Duration `mapstructure:"tier_2_offset"`                // tier_2 相对 tier_1 的延迟
	BackToBackWarning         time.Duration `mapstructure:"back_to_back_warning"`         // 连班间隔小于该值时给出软警告
	SweepInterval             time.Duration `mapstructure:"sweep_interval"`
	SweepTimeout              time.Duration `mapstructure:"sweep_timeout"`
	ReminderInterval          time.Duration `mapstructure:"reminder_interval"`
	ReminderLead              time.Duration `mapstructure:"reminder_lead"`
}

// DefaultLead 返回默认提前释放时长
func (c *SchedulingConfig) DefaultLead() time.Duration {
	return time.Duration(c.DefaultTieredReleaseHours) * time.Hour
}

// NotificationConfig 通知投递配置
type NotificationConfig struct {
	OutboxKey string `mapstructure:"outbox_key"` // 外部邮件/短信投递服务消费的 Redis 列表
}

// RateLimitConfig 抢班接口限流
type RateLimitConfig struct {
	ClaimLimit  int           `mapstructure:"claim_limit"`
	ClaimWindow time.Duration `mapstructure:"claim_window"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "healthcare_staffing")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "") // 须通过配置文件或 BRIDGE_AUTH_JWT_SECRET 提供
	v.SetDefault("auth.issuer", "staffing-bridge")
	v.SetDefault("auth.access_token_ttl", "30m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scheduling.default_tiered_release_hours", 24)
	v.SetDefault("scheduling.tier_2_offset", "12h")
	v.SetDefault("scheduling.back_to_back_warning", "60m")
	v.SetDefault("scheduling.sweep_interval", "15m")
	v.SetDefault("scheduling.sweep_timeout", "5m")
	v.SetDefault("scheduling.reminder_interval", "1h")
	v.SetDefault("scheduling.reminder_lead", "24h")

	v.SetDefault("notification.outbox_key", "notifications:outbox")

	v.SetDefault("rate_limit.claim_limit", 20)
	v.SetDefault("rate_limit.claim_window", "1m")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Scheduling.DefaultTieredReleaseHours < 0 {
		return fmt.Errorf("配置校验失败: scheduling.default_tiered_release_hours 不能为负数")
	}
	if c.Scheduling.SweepInterval <= 0 || c.Scheduling.ReminderInterval <= 0 {
		return fmt.Errorf("配置校验失败: scheduling 的执行间隔必须大于 0")
	}
	if c.Scheduling.SweepTimeout <= 0 {
		return fmt.Errorf("配置校验失败: scheduling.sweep_timeout 必须大于 0")
	}
	if c.Scheduling.BackToBackWarning < 0 {
		return fmt.Errorf("配置校验失败: scheduling.back_to_back_warning 不能为负数")
	}
	return nil
}
