package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"dineqr/config"
	httpapi "dineqr/internal/api/http"
	"dineqr/internal/service"
	"dineqr/internal/storage"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

func main() {
	config.LoadEnv()
	cfg := config.LoadRelay()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := config.MustInitPostgres()
	defer db.Close()

	rdb := config.MustInitRedis()
	defer rdb.Close()

	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(); err != nil {
		log.Fatal("Failed to prepare schema:", err)
	}
	cached := service.NewCachedRepository(repo, storage.NewRedisStore(rdb), cfg.SnapshotTTL)

	writer := config.NewKafkaWriter(cfg.EventsTopic)
	defer writer.Close()

	// Every relay instance must see every event, so each gets its own group.
	reader := config.NewKafkaReader(cfg.EventsTopic, "relay-"+uuid.NewString())
	defer reader.Close()

	hub := service.NewHub(cached)
	consumer := service.NewConsumer(reader, hub, cached)
	go consumer.Start(ctx)

	handler := httpapi.NewHandler(
		hub,
		storage.NewKafkaPublisher(writer),
		service.DefaultQRGenerator{BaseURL: cfg.PublicBaseURL},
		httpapi.NewPollRegistry(nil),
	)
	handler.PollTimeout = cfg.PollTimeout

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("Failed to create scheduler:", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.PollIdle/2),
		gocron.NewTask(func() { handler.ReapIdlePolls(cfg.PollIdle) }),
	)
	if err != nil {
		log.Fatal("Failed to schedule poll reaper:", err)
	}
	scheduler.Start()
	defer scheduler.Shutdown()

	go httpapi.StartServer(cfg.Addr, httpapi.NewRouter(handler))

	<-ctx.Done()
	log.Println("Relay Service shutting down")
}
