// Команда migrate создаёт и обновляет схему БД без запуска сервера.
package main

import (
	"barber_queue/internal/config"
	"barber_queue/internal/logger"
	"barber_queue/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.Setup("info", true)
		bootLog.Fatal().Err(err).Msg("Ошибка загрузки конфигурации")
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogPretty)

	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("STORAGE_DRIVER=memory: миграция не требуется")
		return
	}

	// ConnectDatabase сам прогоняет AutoMigrate
	if _, err := storage.ConnectDatabase(cfg.Database, log); err != nil {
		log.Fatal().Err(err).Msg("Ошибка при миграции")
	}
	log.Info().Msg("Миграция выполнена")
}
