package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bamikavision/auth"
	"bamikavision/config"
	"bamikavision/contact"
	"bamikavision/db"
	"bamikavision/handlers"
	"bamikavision/logging"
	"bamikavision/notify"
	"bamikavision/store"

	"github.com/dchest/captcha"
	"github.com/rs/zerolog/log"
)

const defaultConfigPath = "config.json"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to a JSON or YAML config file")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		// Environment variables alone are enough to run.
		path = ""
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		users    store.UserRepository
		messages store.MessageRepository
	)
	switch cfg.Storage {
	case "sqlite":
		conn, err := db.Open(cfg.DatabasePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open database")
		}
		defer conn.Close()
		users = store.NewSQLiteUsers(conn)
		messages = store.NewSQLiteMessages(conn)
	default:
		users = store.NewMemoryUsers()
		messages = store.NewMemoryMessages()
	}
	log.Info().Str("storage", cfg.Storage).Msg("storage ready")

	creds, err := auth.NewCredentials(users)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize credentials")
	}
	created, err := creds.EnsureBootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bootstrap admin")
	}
	if created {
		event := log.Info()
		if cfg.AdminPassword == config.DefaultAdminPassword {
			event = log.Warn().Bool("default_password", true)
		}
		event.Str("username", cfg.AdminUsername).Msg("bootstrap admin created")
	}

	sessions := auth.NewSessionStore(cfg.SessionKey, cfg.SessionTTL(), cfg.Production)
	go sessions.Run(ctx, 10*time.Minute)

	hub := notify.NewHub()
	notifiers := []contact.Notifier{hub}

	var mailer *notify.Mailer
	if cfg.MailEnabled() {
		mailer = notify.NewMailer(notify.MailerConfig{
			Domain:  cfg.MailgunDomain,
			APIKey:  cfg.MailgunAPIKey,
			From:    cfg.MailFrom,
			To:      cfg.MailTo,
			AppName: cfg.AppName,
		})
		notifiers = append(notifiers, mailer)
		log.Info().Str("to", cfg.MailTo).Msg("e-mail relay enabled")
	}

	opts := contact.Options{MinMessageLength: cfg.MinMessageLength}
	if cfg.CaptchaEnabled {
		opts.Captcha = captcha.VerifyString
	}
	contactService := contact.NewService(messages, opts, notifiers...)

	h := handlers.New(handlers.Deps{
		Config:      cfg,
		Credentials: creds,
		Gate:        auth.NewGate(creds, sessions, handlers.Deny),
		Contact:     contactService,
		Hub:         hub,
	})
	go h.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("app", cfg.AppName).Bool("production", cfg.Production).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	hub.Close()
	if mailer != nil {
		mailer.Wait()
	}

	log.Info().Msg("server shut down successfully")
}
