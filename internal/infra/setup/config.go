package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	mongopersistence "idea-board/internal/infra/persistence/mongo"
)

// 支持的存储驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// DBConfig 描述 SQL 数据库连接参数。DSN 非空时直接使用，否则由各字段拼装。
type DBConfig struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	DSN      string
	Debug    bool
}

// InitDB 按驱动初始化 gorm 连接并设置连接池
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if cfg.Debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// 把驱动错误翻译成 gorm.ErrDuplicatedKey 等通用错误
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite 只有一个写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	logrus.WithField("driver", cfg.Driver).Info("Database connected")
	return db, nil
}

func dialectorFor(cfg DBConfig) (gorm.Dialector, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", cfg.Driver)
	}
}

// buildDSN 从配置构建数据库连接字符串 (DSN)
func buildDSN(cfg DBConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = "127.0.0.1" // 本地开发默认值
	}

	switch cfg.Driver {
	case DriverMySQL:
		if cfg.User == "" || cfg.Name == "" {
			return "", fmt.Errorf("DB_USER and DB_NAME must be set for mysql")
		}
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, host, port, cfg.Name), nil
	case DriverPostgres:
		if cfg.User == "" || cfg.Name == "" {
			return "", fmt.Errorf("DB_USER and DB_NAME must be set for postgres")
		}
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			host, cfg.User, cfg.Password, cfg.Name, port), nil
	case DriverSQLite:
		return "idea-board.db", nil
	default:
		return "", fmt.Errorf("unsupported SQL driver %q", cfg.Driver)
	}
}

// InitRedis 初始化 Redis 连接并 Ping 检查
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute, // 连接最大存活时间
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Redis connected")
	return client, nil
}

// InitMongo 连接 MongoDB 并确保索引存在
func InitMongo(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	if uri == "" || dbName == "" {
		return nil, nil, fmt.Errorf("MONGO_URI and MONGO_DB must be set for mongo")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	if err := mongopersistence.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ensure MongoDB indexes: %w", err)
	}
	logrus.WithField("db", dbName).Info("MongoDB connected")
	return client, db, nil
}
