// Package config 提供 TOML 配置加载、环境变量覆盖与校验
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/wyfcoding/quantpricing/pkg/logger"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// gRPC 服务配置
	GRPC GRPCConfig `mapstructure:"grpc"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger logger.Config `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 限流配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// 定价引擎配置
	Engine EngineConfig `mapstructure:"engine"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// 是否发布定价事件
	Enabled bool `mapstructure:"enabled"`
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 事件主题
	Topic string `mapstructure:"topic"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 按客户端 IP 的限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 每秒请求数
	QPS int `mapstructure:"qps"`
	// 突发容量
	Burst int `mapstructure:"burst"`
}

// EngineConfig 数值引擎参数
type EngineConfig struct {
	// 三叉树步数
	LatticeSteps int `mapstructure:"lattice_steps"`
	// 蒙特卡洛路径数
	MCScenarios int `mapstructure:"mc_scenarios"`
	// 蒙特卡洛时间步数
	MCSteps int `mapstructure:"mc_steps"`
	// 希腊字母相对冲击
	Shock float64 `mapstructure:"shock"`
	// 并行 worker 数
	Workers int `mapstructure:"workers"`
	// 随机种子，0 表示使用系统熵
	Seed int64 `mapstructure:"seed"`
	// 正态随机数方法：box_muller, polar
	NormalMethod string `mapstructure:"normal_method"`
	// 是否使用对偶变量
	Antithetic bool `mapstructure:"antithetic"`
	// 蒙特卡洛定价是否使用 Delta 对冲控制变量
	ControlVariate bool `mapstructure:"control_variate"`
	// 隐含波动率收敛阈值
	IVTolerance float64 `mapstructure:"iv_tolerance"`
	// 隐含波动率最大迭代次数
	IVMaxIter int `mapstructure:"iv_max_iter"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

// LoadWithDefaults 从 TOML 文件加载配置，文件不存在时使用默认值
func LoadWithDefaults(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		// 读取配置文件（如果不存在则忽略）
		_ = v.ReadInConfig()
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// 自动绑定环境变量（APP_ENGINE_SHOCK 覆盖 engine.shock）
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.QPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate_limit.qps and rate_limit.burst must be positive when rate limiting is enabled")
	}
	return c.Engine.Validate()
}

// Validate 校验引擎参数
func (e *EngineConfig) Validate() error {
	if e.LatticeSteps <= 0 {
		return fmt.Errorf("engine.lattice_steps must be positive, got %d", e.LatticeSteps)
	}
	if e.MCScenarios <= 0 || e.MCSteps <= 0 {
		return fmt.Errorf("engine.mc_scenarios and engine.mc_steps must be positive")
	}
	if e.Shock <= 0 || e.Shock > 0.05 {
		return fmt.Errorf("engine.shock must be in (0, 0.05], got %g", e.Shock)
	}
	if e.Workers <= 0 {
		e.Workers = runtime.GOMAXPROCS(0)
	}
	switch e.NormalMethod {
	case "box_muller", "polar":
	default:
		return fmt.Errorf("engine.normal_method %q is not supported", e.NormalMethod)
	}
	if e.IVTolerance <= 0 || e.IVMaxIter <= 0 {
		return fmt.Errorf("engine.iv_tolerance and engine.iv_max_iter must be positive")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "pricing")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "pricing.events")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/pricing.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.qps", 100)
	v.SetDefault("rate_limit.burst", 200)

	v.SetDefault("engine.lattice_steps", 500)
	v.SetDefault("engine.mc_scenarios", 10000)
	v.SetDefault("engine.mc_steps", 252)
	v.SetDefault("engine.shock", 0.001)
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.seed", 0)
	v.SetDefault("engine.normal_method", "box_muller")
	v.SetDefault("engine.antithetic", false)
	v.SetDefault("engine.control_variate", false)
	v.SetDefault("engine.iv_tolerance", 1e-4)
	v.SetDefault("engine.iv_max_iter", 1000)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
