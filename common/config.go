package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultAPIBaseURL 远程 API 的生产地址
	DefaultAPIBaseURL = "https://api.imagehost.ai"
	// DefaultImageBaseURL 图片访问域名
	DefaultImageBaseURL = "https://img.imagehost.ai"
)

// ErrMissingAPIKey 未配置访问凭证
var ErrMissingAPIKey = errors.New("IMAGEHOST_API_KEY is required")

// Config 应用配置结构
type Config struct {
	// 远程 API 与图片域名
	APIBaseURL   string
	ImageBaseURL string
	// 访问凭证，进程生命周期内只读
	APIKey string
	// 未显式指定项目时优先使用的项目
	DefaultProject string
	// 单次 HTTP 请求超时时间（秒）
	TimeoutSeconds int

	// 轮询配置
	PollMaxAttempts           int
	PollIntervalSeconds       int
	PollAttemptTimeoutSeconds int

	// MCP 传输方式: stdio、sse 或 http
	Transport     string
	ServerAddress string
	ServerPort    string

	// OSS 配置（可选：将生成的图片镜像到 S3 兼容存储）
	OSSMirrorEnabled bool
	OSSEndpoint      string
	OSSRegion        string
	OSSAccessKey     string
	OSSSecretKey     string
	OSSBucket        string
	// 预签名 URL 有效期（秒），0 表示返回公开 URL
	OSSURLExpiresSeconds int

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// Overrides 启动参数，非空字段覆盖环境变量
type Overrides struct {
	APIBaseURL   string
	ImageBaseURL string
	APIKey       string
	Transport    string
	Address      string
}

// LoadConfig 从 .env 文件与环境变量加载配置，并应用启动参数覆盖
func LoadConfig(overrides *Overrides) (*Config, error) {
	// stdio 模式下 stdout 用于协议通信，提示信息只能写到 stderr
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := &Config{
		APIBaseURL:                getEnv("IMAGEHOST_API_URL", DefaultAPIBaseURL),
		ImageBaseURL:              getEnv("IMAGEHOST_IMAGE_URL", DefaultImageBaseURL),
		APIKey:                    getEnv("IMAGEHOST_API_KEY", ""),
		DefaultProject:            getEnv("IMAGEHOST_DEFAULT_PROJECT", ""),
		TimeoutSeconds:            getEnvInt("IMAGEHOST_TIMEOUT_SECONDS", 60),
		PollMaxAttempts:           getEnvInt("POLL_MAX_ATTEMPTS", 60),
		PollIntervalSeconds:       getEnvInt("POLL_INTERVAL_SECONDS", 3),
		PollAttemptTimeoutSeconds: getEnvInt("POLL_ATTEMPT_TIMEOUT_SECONDS", 10),
		Transport:                 getEnv("MCP_TRANSPORT", "stdio"),
		ServerAddress:             getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:                getEnv("SERVER_PORT", "8080"),
		// OSS 配置
		OSSMirrorEnabled:     getEnvBool("OSS_MIRROR_ENABLED", false),
		OSSEndpoint:          getEnv("OSS_ENDPOINT", ""),
		OSSRegion:            getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey:         getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey:         getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:            getEnv("OSS_BUCKET", ""),
		OSSURLExpiresSeconds: getEnvInt("OSS_URL_EXPIRES_SECONDS", 0),
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stderr"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	config.apply(overrides)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 初始化日志系统
	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

func (c *Config) apply(o *Overrides) {
	if o == nil {
		return
	}
	if o.APIBaseURL != "" {
		c.APIBaseURL = o.APIBaseURL
	}
	if o.ImageBaseURL != "" {
		c.ImageBaseURL = o.ImageBaseURL
	}
	if o.APIKey != "" {
		c.APIKey = o.APIKey
	}
	if o.Transport != "" {
		c.Transport = o.Transport
	}
	if o.Address != "" {
		host, port, ok := strings.Cut(o.Address, ":")
		if ok {
			if host != "" {
				c.ServerAddress = host
			}
			c.ServerPort = port
		} else {
			c.ServerPort = o.Address
		}
	}
}

// Validate 校验必需的配置项
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("IMAGEHOST_API_URL must not be empty")
	}
	if c.ImageBaseURL == "" {
		return fmt.Errorf("IMAGEHOST_IMAGE_URL must not be empty")
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive, got %d", c.PollMaxAttempts)
	}
	if c.PollIntervalSeconds < 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must not be negative, got %d", c.PollIntervalSeconds)
	}
	if c.PollAttemptTimeoutSeconds <= 0 {
		return fmt.Errorf("POLL_ATTEMPT_TIMEOUT_SECONDS must be positive, got %d", c.PollAttemptTimeoutSeconds)
	}
	switch strings.ToLower(c.Transport) {
	case "stdio", "sse", "http":
	default:
		return fmt.Errorf("unsupported MCP_TRANSPORT: %s", c.Transport)
	}
	if c.OSSMirrorEnabled && c.OSSBucket == "" {
		return fmt.Errorf("OSS_BUCKET is required when OSS_MIRROR_ENABLED=true")
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}
