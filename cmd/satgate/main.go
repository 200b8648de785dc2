package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/satgate/satgate/internal/config"
	"github.com/satgate/satgate/internal/http_api"
	"github.com/satgate/satgate/internal/l402"
	"github.com/satgate/satgate/internal/lightning"
	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/internal/notificator"
	"github.com/satgate/satgate/internal/repository"
	"github.com/satgate/satgate/pkg/logger"
	"github.com/satgate/satgate/pkg/validation"
)

func main() {
	app := &cli.App{
		Name:  "satgate",
		Usage: "Satgate is an L402 Lightning payment gate for HTTP resources",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "API port"},
			&cli.Int64Flag{Name: "price-sats", Aliases: []string{"p"}, Usage: "Price per challenge in satoshis"},
			&cli.IntFlag{Name: "validity-hours", Aliases: []string{"v"}, Usage: "Token validity window in hours"},
			&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Usage: "Protected resource location"},
			&cli.StringFlag{Name: "secret-key", Aliases: []string{"k"}, Usage: "Hex-encoded 32-byte token signing key"},
			&cli.StringFlag{Name: "lightning-backend", Aliases: []string{"b"}, Usage: "Lightning backend (lnd or mock)"},
			&cli.StringFlag{Name: "lnd-host", Usage: "LND gRPC host:port"},
			&cli.StringFlag{Name: "lnd-tls-cert", Usage: "Path to the LND TLS certificate"},
			&cli.StringFlag{Name: "lnd-macaroon", Usage: "Path to the LND node macaroon"},
			&cli.BoolFlag{Name: "require-settlement", Aliases: []string{"r"}, Usage: "Confirm settlement with the backend before authorizing"},
			&cli.StringFlag{Name: "storage", Aliases: []string{"s"}, Usage: "Challenge ledger storage (postgres or memory)"},
			&cli.StringFlag{Name: "postgres-user", Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Usage: "Postgres database name"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("price-sats") {
		cfg.PriceSats = c.Int64("price-sats")
	}
	if c.IsSet("validity-hours") {
		cfg.TokenValidityHours = c.Int("validity-hours")
	}
	if c.IsSet("location") {
		cfg.Location = c.String("location")
	}
	if c.IsSet("secret-key") {
		key, err := validation.ValidateSecretKey(c.String("secret-key"))
		if err != nil {
			return fmt.Errorf("invalid secret key flag: %v", err)
		}
		cfg.SecretKey = key
	}
	if c.IsSet("lightning-backend") {
		cfg.LightningBackend = c.String("lightning-backend")
	}
	if c.IsSet("lnd-host") {
		cfg.LNDHost = c.String("lnd-host")
	}
	if c.IsSet("lnd-tls-cert") {
		cfg.LNDTLSCertPath = c.String("lnd-tls-cert")
	}
	if c.IsSet("lnd-macaroon") {
		cfg.LNDMacaroonPath = c.String("lnd-macaroon")
	}
	if c.IsSet("require-settlement") {
		cfg.RequireSettlement = c.Bool("require-settlement")
	}
	if c.IsSet("storage") {
		cfg.Storage = c.String("storage")
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	// Initialize the challenge ledger
	var repo models.Repository
	switch cfg.Storage {
	case config.StoragePostgres:
		repo, err = repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}
	default:
		log.Info("Using in-memory challenge ledger")
		repo = repository.NewMemoryDB()
	}

	// Initialize the payment backend
	var backend models.LightningBackend
	switch cfg.LightningBackend {
	case config.BackendLND:
		backend, err = lightning.NewLNDBackend(lightning.LNDConfig{
			Host:         cfg.LNDHost,
			TLSCertPath:  cfg.LNDTLSCertPath,
			MacaroonPath: cfg.LNDMacaroonPath,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to LND: %v", err)
		}
	default:
		log.Info("Using mock Lightning backend, no real payments will move")
		backend = lightning.NewMockBackend(false, log)
	}
	defer backend.Close()

	// Initialize the L402 core
	validity := time.Duration(cfg.TokenValidityHours) * time.Hour
	minter, err := l402.NewMinter(cfg.SecretKey, backend, repo, validity, log)
	if err != nil {
		return fmt.Errorf("failed to create minter: %v", err)
	}
	verifier, err := l402.NewVerifier(cfg.SecretKey, backend, cfg.RequireSettlement, log)
	if err != nil {
		return fmt.Errorf("failed to create verifier: %v", err)
	}

	// Initialize notifications
	var notifier models.NotificationService
	if cfg.TelegramBotToken != "" || cfg.SMTPHost != "" {
		var telegramNotif *notificator.TelegramNotificator
		if cfg.TelegramBotToken != "" {
			telegramNotif, err = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken)
			if err != nil {
				return fmt.Errorf("failed to create telegram notificator: %v", err)
			}
		}
		var emailNotif *notificator.EmailNotificator
		if cfg.SMTPHost != "" {
			emailNotif = notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
		}
		notifier = notificator.NewNotificator(log, telegramNotif, cfg.TelegramChatID, emailNotif, cfg.NotifyEmail)
	}

	// Initialize API server
	gate := http_api.NewGate(minter, verifier, repo, notifier, cfg.PriceSats, cfg.Location, log)
	apiServer := http_api.NewHTTPServer(cfg.APIPort, gate, backend, repo, cfg.Development, log)

	go apiServer.Start()

	// Sweep expired unsettled challenges out of the ledger periodically.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := repo.RemoveExpiredChallenges(time.Now().Unix()); err != nil {
				log.Errorw("Failed to sweep expired challenges", "error", err)
			}
		}
	}()

	// Block until interrupted, then shut down gracefully
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infow("Received signal, shutting down", "signal", sig.String())

	return apiServer.Shutdown()
}
