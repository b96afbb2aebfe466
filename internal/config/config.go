package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramConfig TelegramConfig
	PostgresConfig PostgresConfig
	YClientsConfig YClientsConfig
	ReminderConfig ReminderConfig
	KafkaConfig    KafkaConfig
	TracingConfig  TracingConfig
	MetricsPort    string
}

type TelegramConfig struct {
	Token       string
	AdminChatID int64
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type YClientsConfig struct {
	BaseURL        string
	CompanyID      int64
	PartnerToken   string
	UserToken      string
	RatePerMinute  int
	RequestTimeout int
}

type ReminderConfig struct {
	HoursBefore   int
	CheckSchedule string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type TracingConfig struct {
	Endpoint string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}

	companyID, err := strconv.ParseInt(getEnv("YCLIENTS_COMPANY_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid YCLIENTS_COMPANY_ID: %w", err)
	}

	adminChatID, err := strconv.ParseInt(getEnv("ADMIN_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %w", err)
	}

	hoursBefore, err := strconv.Atoi(getEnv("REMINDER_HOURS_BEFORE", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_HOURS_BEFORE: %w", err)
	}

	ratePerMinute, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	requestTimeout, err := strconv.Atoi(getEnv("YCLIENTS_REQUEST_TIMEOUT", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid YCLIENTS_REQUEST_TIMEOUT: %w", err)
	}

	config := &Config{
		TelegramConfig: TelegramConfig{
			Token:       getEnv("TELEGRAM_TOKEN", ""),
			AdminChatID: adminChatID,
		},
		PostgresConfig: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "user"),
			Password: getEnv("POSTGRES_PASSWORD", "password"),
			DBName:   getEnv("POSTGRES_DB", "salonbot"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		YClientsConfig: YClientsConfig{
			BaseURL:        getEnv("YCLIENTS_API_URL", "https://api.yclients.com/api/v1"),
			CompanyID:      companyID,
			PartnerToken:   getEnv("YCLIENTS_PARTNER_TOKEN", ""),
			UserToken:      getEnv("YCLIENTS_USER_TOKEN", ""),
			RatePerMinute:  ratePerMinute,
			RequestTimeout: requestTimeout,
		},
		ReminderConfig: ReminderConfig{
			HoursBefore:   hoursBefore,
			CheckSchedule: getEnv("CHECK_SCHEDULE", "@every 1m"),
		},
		KafkaConfig: KafkaConfig{
			Brokers: splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "notification-audit"),
		},
		TracingConfig: TracingConfig{
			Endpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
		MetricsPort: getEnv("METRICS_PORT", ":8080"),
	}

	if config.TelegramConfig.Token == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	if config.YClientsConfig.PartnerToken == "" {
		return nil, fmt.Errorf("YCLIENTS_PARTNER_TOKEN is required")
	}

	if config.YClientsConfig.CompanyID == 0 {
		return nil, fmt.Errorf("YCLIENTS_COMPANY_ID is required")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
