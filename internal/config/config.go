package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

var (
	ErrUnknownDriver = errors.New("неизвестный драйвер хранилища")
	ErrMissingVAPID  = errors.New("VAPID ключи обязательны при включенных push-уведомлениях")
)

type Database struct {
	Driver     string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       string `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER"`
	Password   string `env:"DB_PASSWORD"`
	Name       string `env:"DB_NAME"`
	SSLMode    string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"barber_queue.db"`
}

// DSN собирает строку подключения к Postgres.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type Redis struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"10s"`
}

// Push содержит настройки web push. Ключи передаются через окружение, а не зашиваются в код.
type Push struct {
	Enabled          bool          `env:"PUSH_ENABLED" envDefault:"true"`
	Subject          string        `env:"VAPID_SUBJECT"`
	PublicKey        string        `env:"VAPID_PUBLIC_KEY"`
	PrivateKey       string        `env:"VAPID_PRIVATE_KEY"`
	TTL              int           `env:"PUSH_TTL" envDefault:"3600"`
	Concurrency      int           `env:"PUSH_CONCURRENCY" envDefault:"8"`
	NotifyAllDevices bool          `env:"NOTIFY_ALL_DEVICES" envDefault:"true"`
	Timeout          time.Duration `env:"PUSH_TIMEOUT" envDefault:"10s"`
}

type Config struct {
	HTTPAddr        string `env:"HTTP_ADDR" envDefault:":8080"`
	JWTAccessSecret string `env:"JWT_ACCESS_SECRET"`
	RepairSchedule  string `env:"REPAIR_SCHEDULE" envDefault:"0 */10 * * * *"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty       bool   `env:"LOG_PRETTY" envDefault:"false"`

	Database Database
	Redis    Redis
	Push     Push
}

// Load читает .env (если ENV_CHEK не задан) и разбирает переменные окружения.
func Load() (*Config, error) {
	if os.Getenv("ENV_CHEK") == "" {
		// .env может отсутствовать, это не ошибка
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("разбор переменных окружения: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	if c.Push.Enabled && (c.Push.PublicKey == "" || c.Push.PrivateKey == "" || c.Push.Subject == "") {
		return ErrMissingVAPID
	}
	if c.Push.Concurrency < 1 {
		c.Push.Concurrency = 1
	}
	return nil
}
