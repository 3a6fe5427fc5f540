package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	DB    DBConfig
	Redis RedisConfig
	Kafka KafkaConfig

	TracingEnabled bool
	JaegerEndpoint string

	JWTSecret string
	Momo      MomoConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN renders the lib/pq key/value connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// MomoConfig holds the wallet provider credentials and callback targets.
type MomoConfig struct {
	Endpoint    string
	PartnerCode string
	PartnerName string
	StoreID     string
	AccessKey   string
	SecretKey   string
	RedirectURL string
	IPNURL      string
	Lang        string
	RequestType string
	Timeout     time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "shopdb"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Brokers: strings.Split(getEnv("KAFKA_BROKER", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "order_events"),
		},
		TracingEnabled: getEnvBool("TRACING_ENABLED", true),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Momo: MomoConfig{
			Endpoint:    getEnv("MOMO_ENDPOINT", "https://test-payment.momo.vn/v2/gateway/api/create"),
			PartnerCode: os.Getenv("MOMO_PARTNER_CODE"),
			PartnerName: getEnv("MOMO_PARTNER_NAME", "Shop"),
			StoreID:     getEnv("MOMO_STORE_ID", "ShopStore"),
			AccessKey:   os.Getenv("MOMO_ACCESS_KEY"),
			SecretKey:   os.Getenv("MOMO_SECRET_KEY"),
			RedirectURL: getEnv("MOMO_REDIRECT_URL", "http://localhost:3000/payment/result"),
			IPNURL:      getEnv("MOMO_IPN_URL", "http://localhost:8080/payments/momo/callback"),
			Lang:        getEnv("MOMO_LANG", "vi"),
			RequestType: getEnv("MOMO_REQUEST_TYPE", "captureWallet"),
			Timeout:     getEnvDuration("MOMO_TIMEOUT", 15*time.Second),
		},
	}
}

// Validate reports every missing secret at once. Signing with an empty key
// would produce signatures the provider can never verify, so startup must stop.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Momo.SecretKey == "" {
		errs = append(errs, errors.New("MOMO_SECRET_KEY is required"))
	}
	if c.Momo.AccessKey == "" {
		errs = append(errs, errors.New("MOMO_ACCESS_KEY is required"))
	}
	if c.Momo.PartnerCode == "" {
		errs = append(errs, errors.New("MOMO_PARTNER_CODE is required"))
	}
	if c.Momo.Timeout <= 0 {
		errs = append(errs, errors.New("MOMO_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
