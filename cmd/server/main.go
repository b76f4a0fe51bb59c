package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gridbase/gridbase/internal/application/services"
	"github.com/gridbase/gridbase/internal/bootstrap"
	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/search"
	"github.com/gridbase/gridbase/internal/interfaces/rest"
	"github.com/gridbase/gridbase/internal/interfaces/ws"
)

func main() {
	cfg := bootstrap.LoadConfig()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✅ Database connection established")

	if err := bootstrap.InitializeSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	indexer := search.NewBleveIndexer(cfg.IndexDir)
	defer indexer.Close()

	svcMgr := services.NewServiceManager(db, indexer)
	log.Println("🔧 Service manager initialized")

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := ws.NewHub(svcMgr.Auth)
	hub.RegisterHandlers(svcMgr.EventBus)
	go hub.Run(hubCtx)

	svcMgr.Outbox.StartWorker(cfg.OutboxInterval)

	// Nightly outbox cleanup
	scheduler := cron.New()
	_, err = scheduler.AddFunc("@daily", func() {
		n, err := svcMgr.Outbox.CleanupProcessed(context.Background(), cfg.OutboxRetention)
		if err != nil {
			log.Printf("⚠️ Outbox cleanup failed: %v", err)
			return
		}
		log.Printf("🧹 Outbox cleanup removed %d processed events", n)
	})
	if err != nil {
		log.Fatalf("Failed to schedule outbox cleanup: %v", err)
	}
	scheduler.Start()

	router := rest.NewRouter(svcMgr, hub)
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}

	go func() {
		log.Printf("🚀 Server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", err)
	}

	scheduler.Stop()
	svcMgr.Outbox.StopWorker()
	stopHub()
	log.Println("👋 Bye")
}
