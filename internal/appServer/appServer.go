// launching the http server, scheduler, storage and kafka producer
package appServer

import (
	"context"
	"crypto/tls"
	"log"

	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/slurpey/anvilizer/config"
	"github.com/slurpey/anvilizer/internal/compositor"
	"github.com/slurpey/anvilizer/internal/database"
	"github.com/slurpey/anvilizer/internal/entity"
	"github.com/slurpey/anvilizer/internal/extractor"
	"github.com/slurpey/anvilizer/internal/pipeline"
	"github.com/slurpey/anvilizer/internal/pkg/events"
	"github.com/slurpey/anvilizer/internal/pkg/storage"
	"github.com/slurpey/anvilizer/internal/scheduler"
	"github.com/slurpey/anvilizer/internal/service"
	"github.com/slurpey/anvilizer/internal/transport"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(new(logrus.JSONFormatter))

	basePath := cfg.Storage.BasePath
	if basePath == "" {
		basePath = "./storage"
	}
	fileStorage := storage.NewFileStorage(basePath)
	sessionRepo := database.NewSessionRepository(fileStorage)

	var producer events.Producer
	if cfg.Kafka.Enabled {
		producer = events.NewProducer(config.GetEnv("KAFKA_BROKERS", cfg.Kafka.Brokers), cfg.Kafka.Topic)
	} else {
		producer = events.NewProducer("", cfg.Kafka.Topic)
	}

	ext := extractor.New(extractor.Config{
		PrimaryURL:    config.GetEnv("SEGMENTER_PRIMARY_URL", cfg.Extractor.PrimaryURL),
		PrimaryModel:  cfg.Extractor.PrimaryModel,
		FallbackURL:   config.GetEnv("SEGMENTER_FALLBACK_URL", cfg.Extractor.FallbackURL),
		FallbackModel: cfg.Extractor.FallbackModel,
		Timeout:       cfg.Extractor.Timeout,
	})

	controller := pipeline.NewController(ext, compositor.New(), pipeline.Config{
		PreviewLongEdge: cfg.Pipeline.PreviewLongEdge,
		MaxDimension:    cfg.Pipeline.MaxDimension,
		StepTimeout:     cfg.Pipeline.StepTimeout,
	})

	sched := scheduler.New(scheduler.Config{
		Workers:         cfg.Queue.Workers,
		MaxQueueDepth:   cfg.Queue.MaxDepth,
		ResultTTL:       cfg.Queue.ResultTTL,
		CleanupInterval: cfg.Queue.CleanupInterval,
	}, func(ctx context.Context, job *entity.Job) (*entity.JobResult, error) {
		return controller.Run(ctx, job)
	})

	anvilService := service.NewAnvilService(sched, sessionRepo, producer, service.Limits{})
	anvilHandler := transport.NewAnvilHandler(anvilService)

	maxSessions := cfg.Pipeline.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 20
	}
	anvilService.CleanupOldSessions(maxSessions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(anvilHandler)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	sched.Stop()
	if err := producer.Close(); err != nil {
		logrus.Errorf("error occured on closing kafka producer: %s", err.Error())
	}
}
