package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Email      EmailConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Database   DatabaseConfig
	MamoPay    MamoPayConfig
	Scheduler  SchedulerConfig
	App        AppConfig
	Production bool
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers  []string
	Topics   TopicConfig
	MockMode bool
}

type DatabaseConfig struct {
	// DSN overrides the individual connection fields when set.
	DSN          string
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// ConnString returns the PostgreSQL connection string, preferring an
// explicit DSN over the assembled parts.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type TopicConfig struct {
	ReservationCreated string
	ReservationStatus  string
	PaymentCaptured    string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	AdminEmail   string
}

// MamoPayConfig holds payment-link provider settings. An empty or
// placeholder APIKey puts the gateway client into mock mode.
type MamoPayConfig struct {
	BaseURL string
	APIKey  string
}

type SchedulerConfig struct {
	Hour   int
	Minute int
}

type AppConfig struct {
	FrontendURL string
}

// Timings returns the environment-dependent intervals used by the
// settlement poller and gateway cooldowns.
type Timings struct {
	PollInterval      time.Duration
	CheckThrottle     time.Duration
	RateLimitFallback time.Duration
	AuthCooldown      time.Duration
}

func (c *Config) Timings() Timings {
	if c.Production {
		return Timings{
			PollInterval:      30 * time.Minute,
			CheckThrottle:     60 * time.Second,
			RateLimitFallback: 60 * time.Second,
			AuthCooldown:      30 * time.Minute,
		}
	}
	return Timings{
		PollInterval:      15 * time.Second,
		CheckThrottle:     20 * time.Second,
		RateLimitFallback: 20 * time.Second,
		AuthCooldown:      60 * time.Second,
	}
}

func Load() *Config {
	mockMode := getEnvBool("KAFKA_MOCK_MODE", false)
	production := getEnv("APP_ENV", "development") == "production"

	mamoBase := getEnv("MAMOPAY_BASE_URL", "")
	if mamoBase == "" {
		if production {
			mamoBase = "https://business.mamopay.com"
		} else {
			mamoBase = "https://sandbox.business.mamopay.com"
		}
	}

	return &Config{
		Production: production,
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromAddress:  getEnv("EMAIL_FROM", "bookings@bookthatboat.com"),
			AdminEmail:   getEnv("ADMIN_EMAIL", "admin@bookthatboat.com"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},

		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "booking_user"),
			Password:     getEnv("DB_PASSWORD", "booking_pass"),
			Database:     getEnv("DB_NAME", "booking_engine"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			MockMode: mockMode,
			Topics: TopicConfig{
				ReservationCreated: getEnv("KAFKA_TOPIC_RESERVATION_CREATED", "reservation-created"),
				ReservationStatus:  getEnv("KAFKA_TOPIC_RESERVATION_STATUS", "reservation-status-changed"),
				PaymentCaptured:    getEnv("KAFKA_TOPIC_PAYMENT_CAPTURED", "reservation-payment-captured"),
			},
		},
		MamoPay: MamoPayConfig{
			BaseURL: mamoBase,
			APIKey:  getEnv("MAMOPAY_API_KEY", ""),
		},
		Scheduler: SchedulerConfig{
			Hour:   getEnvInt("INSTALLMENT_SCHEDULER_HOUR", 9),
			Minute: getEnvInt("INSTALLMENT_SCHEDULER_MINUTE", 0),
		},
		App: AppConfig{
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
