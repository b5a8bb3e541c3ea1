package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
// 各组件在构造时显式接收配置值，不读取全局状态
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	AI         AIConfig
	Validation ValidationConfig
	Replay     ReplayConfig
	Parser     ParserConfig
	Pricing    PricingConfig
	Storage    StorageConfig
	Security   SecurityConfig
	Log        LogConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string // postgres | sqlite
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	Path         string // sqlite 文件路径
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置，Host 为空时使用进程内运行锁
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  int // 运行锁过期时间（秒）
}

// AIConfig AI配置
type AIConfig struct {
	Provider string
	OpenAI   OpenAIConfig
	DeepSeek OpenAIConfig
}

// OpenAIConfig OpenAI 兼容接口配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// ValidationConfig 校验配置
type ValidationConfig struct {
	BatchSize              int  // 单次 LLM 调用的最大条目数
	ContextTurns           int  // 每条目携带的前序对话轮数
	EstOutputTokensPerItem int  // 估算时每条目的输出 token 数
	AutoStart              bool // 运行完成后自动开始校验
}

// ReplayConfig 对话回放配置
type ReplayConfig struct {
	Timeout int // 单次请求超时（秒）
}

// ParserConfig 转录解析配置
type ParserConfig struct {
	ChunkSize        int
	ClarityBatchSize int
	MaxUploadBytes   int64
}

// PricingConfig 每百万 token 价格（美元）
type PricingConfig struct {
	InputPer1M  float64
	OutputPer1M float64
}

// StorageConfig 上传文件存储配置
type StorageConfig struct {
	Type  string // local | minio
	Local LocalStorageConfig
	MinIO MinIOConfig
}

// LocalStorageConfig 本地存储配置
type LocalStorageConfig struct {
	BasePath string
}

// MinIOConfig MinIO 配置
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	EncryptionKey string
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	Format     string // json | console
	OutputPath string
}

// Load 加载配置
// path 为空或文件不存在时仅使用默认值与环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("VALIDATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.Validation.BatchSize < 1 {
		return fmt.Errorf("validation.batchSize must be >= 1, got %d", c.Validation.BatchSize)
	}
	if c.Validation.ContextTurns < 0 {
		return fmt.Errorf("validation.contextTurns must be >= 0, got %d", c.Validation.ContextTurns)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled Redis 是否配置
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "chatbot-validator")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "chatbot_validator")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "./data/validator.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockTTL", 6*60*60)

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.apiKey", "")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-5-mini")
	v.SetDefault("ai.openai.timeout", 120)
	v.SetDefault("ai.deepseek.apiKey", "")
	v.SetDefault("ai.deepseek.baseUrl", "https://api.deepseek.com/v1")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")

	// Validation
	v.SetDefault("validation.batchSize", 50)
	v.SetDefault("validation.contextTurns", 2)
	v.SetDefault("validation.estOutputTokensPerItem", 100)
	v.SetDefault("validation.autoStart", true)

	// Replay
	v.SetDefault("replay.timeout", 120)

	// Parser
	v.SetDefault("parser.chunkSize", 12000)
	v.SetDefault("parser.clarityBatchSize", 50)
	v.SetDefault("parser.maxUploadBytes", 20<<20)

	// Pricing
	v.SetDefault("pricing.inputPer1M", 2.50)
	v.SetDefault("pricing.outputPer1M", 10.00)

	// Storage
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.basePath", "./data/uploads")
	v.SetDefault("storage.minio.bucket", "transcripts")

	// Security
	v.SetDefault("security.encryptionKey", "")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.outputPath", "stdout")
}
