package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"idea-board/internal/infra/setup"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	AppEnv     string
	ServerPort string
	LogLevel   string

	StoreDriver string // mysql | postgres | sqlite | mongo
	DBUser      string
	DBPassword  string
	DBHost      string
	DBPort      string
	DBName      string
	DatabaseDSN string
	MongoURI    string
	MongoDB     string

	// RedisAddr 为空时关闭限流、token 注销、任务队列和跨进程推送
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	JWTSecret      string
	JWTExpiryHours int

	RateLimitMax      int
	RateLimitWindow   time.Duration
	CORSAllowedOrigin string
}

// LoadConfig 从环境变量加载配置，.env 文件存在时先加载
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		AppEnv:            envOr("APP_ENV", "development"),
		ServerPort:        envOr("SERVER_PORT", "8080"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		StoreDriver:       envOr("STORE_DRIVER", setup.DriverMySQL),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		DatabaseDSN:       os.Getenv("DATABASE_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           os.Getenv("MONGO_DB"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:         envOr("REDIS_KEY_PREFIX", "ib:"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		CORSAllowedOrigin: envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTExpiryHours, err = envInt("JWT_EXPIRY_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = envInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDuration("RATE_LIMIT_WINDOW", time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch cfg.StoreDriver {
	case setup.DriverMySQL, setup.DriverPostgres, setup.DriverSQLite:
	case setup.DriverMongo:
		if cfg.MongoURI == "" || cfg.MongoDB == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DB must be set when STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return nil
}

// DBConfig 返回 SQL 存储的连接参数
func (cfg *Config) DBConfig() setup.DBConfig {
	return setup.DBConfig{
		Driver:   cfg.StoreDriver,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		DSN:      cfg.DatabaseDSN,
		Debug:    cfg.LogLevel == "debug",
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be a duration: %w", key, err)
	}
	return d, nil
}
