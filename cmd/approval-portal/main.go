package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/sagar1503/ApprovalPortal/internal/audit"
	"github.com/sagar1503/ApprovalPortal/internal/config"
	"github.com/sagar1503/ApprovalPortal/internal/directory"
	"github.com/sagar1503/ApprovalPortal/internal/httpserver"
	"github.com/sagar1503/ApprovalPortal/internal/notify"
	"github.com/sagar1503/ApprovalPortal/internal/store"
	"github.com/sagar1503/ApprovalPortal/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := cfg.Logger()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db open")
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("db ping")
	}

	st := store.NewPGStore(db)

	var dir directory.Directory = directory.Static{}
	if cfg.DirectoryURL != "" {
		httpDir, err := directory.NewHTTPClient(directory.HTTPClientConfig{
			BaseURL: cfg.DirectoryURL,
			Timeout: cfg.DirectoryTimeout,
			Retries: cfg.DirectoryRetries,
		})
		if err != nil {
			log.WithError(err).Fatal("directory client init")
		}
		dir = httpDir
	} else {
		log.Warn("no directory configured, manager stages fall back to matrix values")
	}

	var recorderOpts []audit.RecorderOption
	if len(cfg.KafkaBrokers) > 0 {
		streamer, err := audit.NewStreamer(audit.StreamerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.AuditTopic,
		})
		if err != nil {
			log.WithError(err).Fatal("audit streamer init")
		}
		defer streamer.Close()
		recorderOpts = append(recorderOpts, audit.WithStreamer(streamer))
	}
	if cfg.ArchiveBucket != "" {
		archiver, err := audit.NewS3Archiver(context.Background(), cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			log.WithError(err).Fatal("audit archiver init")
		}
		recorderOpts = append(recorderOpts, audit.WithArchiver(archiver))
	}
	recorder := audit.NewRecorder(st, log, recorderOpts...)

	var dispatcherOpts []notify.DispatcherOption
	if cfg.SMTPAddr != "" {
		sender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
		if err != nil {
			log.WithError(err).Fatal("smtp sender init")
		}
		dispatcherOpts = append(dispatcherOpts, notify.WithSender(sender))
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewEventProducer(notify.EventProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.NotificationTopic,
		})
		if err != nil {
			log.WithError(err).Fatal("notification producer init")
		}
		defer producer.Close()
		dispatcherOpts = append(dispatcherOpts, notify.WithEventProducer(producer))
	}
	dispatcher := notify.NewDispatcher(st, log, dispatcherOpts...)

	resolver := workflow.NewResolver(st, dir, log)
	engine := workflow.NewEngine(st, resolver, recorder, dispatcher, log)
	server := httpserver.New(cfg, engine, st, log)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("approval portal listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}
