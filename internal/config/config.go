package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/models"
)

type Config struct {
	HTTP_ADDR   string
	LOG_LEVEL   string
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string
	ES_INDEX    string

	KAFKA_ADDRESS string

	SMTP_HOST         string
	SMTP_PORT         string
	SMTP_USER         string
	SMTP_PASSWORD     string
	APP_EMAIL_ADDRESS string

	VERIFICATION_URL string
	LOGIN_URL        string

	STORAGE_TYPE          string
	STORAGE_DIR           string
	STORAGE_S3_BUCKET     string
	STORAGE_S3_REGION     string
	STORAGE_S3_ENDPOINT   string
	STORAGE_S3_ACCESS_KEY string
	STORAGE_S3_SECRET_KEY string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		HTTP_ADDR:   getDefault("HTTP_ADDR", ":8080"),
		LOG_LEVEL:   getDefault("LOG_LEVEL", "info"),
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),
		ES_INDEX:    getDefault("ES_INDEX", "posts"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),

		SMTP_HOST:         os.Getenv("SMTP_HOST"),
		SMTP_PORT:         getDefault("SMTP_PORT", "587"),
		SMTP_USER:         os.Getenv("SMTP_USER"),
		SMTP_PASSWORD:     os.Getenv("SMTP_PASSWORD"),
		APP_EMAIL_ADDRESS: os.Getenv("APP_EMAIL_ADDRESS"),

		VERIFICATION_URL: getDefault("VERIFICATION_URL", "http://localhost:8080/api/v1/verify"),
		LOGIN_URL:        getDefault("LOGIN_URL", "http://localhost:3000/login"),

		STORAGE_TYPE:          getDefault("STORAGE_TYPE", "local"),
		STORAGE_DIR:           getDefault("STORAGE_DIR", "fs/storage"),
		STORAGE_S3_BUCKET:     os.Getenv("STORAGE_S3_BUCKET"),
		STORAGE_S3_REGION:     os.Getenv("STORAGE_S3_REGION"),
		STORAGE_S3_ENDPOINT:   os.Getenv("STORAGE_S3_ENDPOINT"),
		STORAGE_S3_ACCESS_KEY: os.Getenv("STORAGE_S3_ACCESS_KEY"),
		STORAGE_S3_SECRET_KEY: os.Getenv("STORAGE_S3_SECRET_KEY"),
	}

	return config, nil
}

func getDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func InitDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB: %w", err)
	}
	configurePool(sqlDB)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}
