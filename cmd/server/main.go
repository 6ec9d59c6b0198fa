package main

import (
	"flag"
	"log"

	"github.com/ButyrinIA/feedsync/internal/config"
	"github.com/ButyrinIA/feedsync/internal/server"
	"github.com/ButyrinIA/feedsync/internal/storage"
	"github.com/ButyrinIA/feedsync/internal/storage/memory"
	"github.com/ButyrinIA/feedsync/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "", "тип хранилища: memory или postgres (по умолчанию из конфигурации)")
	locale := flag.String("locale", "", "язык сообщений сервера: en или tr")
	anomalyEvery := flag.Int("anomaly-every", -1, "каждый N-й лайк отвечает 500, 0 - выключено")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if *storageType != "" {
		cfg.Server.Storage = *storageType
	}
	if *locale != "" {
		cfg.Server.Locale = *locale
	}
	if *anomalyEvery >= 0 {
		cfg.Server.AnomalyEvery = *anomalyEvery
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Неверная конфигурация: %v", err)
	}

	var store storage.Storage
	switch cfg.Server.Storage {
	case "postgres":
		log.Println("Инициализация хранилища PostgreSQL")
		store, err = postgres.New(cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("Не удалось инициализировать PostgreSQL: %v", err)
		}
	default:
		log.Println("Инициализация хранилища Memory")
		store = memory.New()
	}
	defer store.Close()

	srv := server.New(cfg, store)
	log.Println("Запуск сервера")
	if err := srv.Run(); err != nil {
		log.Fatalf("Не удалось запустить сервер: %v", err)
	}
}
