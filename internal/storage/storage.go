package storage

import (
	"errors"
	"fmt"
	"time"

	"barber_queue/internal/config"
	"barber_queue/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound возвращается, когда запись отсутствует в хранилище.
var ErrNotFound = errors.New("запись не найдена")

// Stores объединяет все хранилища, которыми пользуется ядро очереди.
type Stores struct {
	Queue         QueueStore
	Subscriptions SubscriptionStore
	Status        StatusStore
	Users         UserStore
}

// NewGormStores строит хранилища поверх одного подключения gorm.
func NewGormStores(db *gorm.DB) Stores {
	return Stores{
		Queue:         NewQueueStore(db),
		Subscriptions: NewSubscriptionStore(db),
		Status:        NewStatusStore(db),
		Users:         NewUserStore(db),
	}
}

// NewMemoryStores используется для STORAGE_DRIVER=memory: состояние живёт только в процессе.
func NewMemoryStores() Stores {
	return Stores{
		Queue:         NewMemoryQueueStore(),
		Subscriptions: NewMemorySubscriptionStore(),
		Status:        NewMemoryStatusStore(),
		Users:         NewMemoryUserStore(),
	}
}

// ConnectDatabase открывает БД выбранного драйвера и мигрирует схему.
func ConnectDatabase(cfg config.Database, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("подключение к базе данных: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info().Str("driver", cfg.Driver).Msg("Подключение к базе данных успешно")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("миграция схемы: %w", err)
	}
	return nil
}

// NewRedis возвращает nil, если REDIS_ADDR не задан.
func NewRedis(cfg config.Redis) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
