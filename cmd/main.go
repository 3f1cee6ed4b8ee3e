/**
 * @description
 * This is the main entry point for the ledger-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the partner bank directory and client, the message broker, the
 * repository, the core application service, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/banks, internal/config, internal/store: Internal packages.
 * - pkg/partnerclient, pkg/rabbitmq: Clients for partner banks and RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/api"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/app"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/banks"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/config"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/store"
	"github.com/unk029-openconsultinguk/unk029-bank-app/pkg/partnerclient"
	"github.com/unk029-openconsultinguk/unk029-bank-app/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting ledger-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Ensure required tables exist (idempotent)
	if _, err := dbpool.Exec(context.Background(), `
        CREATE TABLE IF NOT EXISTS accounts (
            account_no BIGINT PRIMARY KEY,
            name TEXT NOT NULL,
            balance NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
            sort_code TEXT NOT NULL,
            password_hash TEXT NOT NULL,
            email TEXT UNIQUE,
            mobile TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS transactions (
            id BIGSERIAL PRIMARY KEY,
            account_no BIGINT NOT NULL REFERENCES accounts(account_no),
            type TEXT NOT NULL,
            amount NUMERIC(14, 2) NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            related_account_no BIGINT,
            direction TEXT NOT NULL,
            status TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_transactions_account_no_created_at
            ON transactions (account_no, created_at DESC);
        CREATE TABLE IF NOT EXISTS payees (
            id BIGSERIAL PRIMARY KEY,
            user_account_no BIGINT NOT NULL REFERENCES accounts(account_no),
            payee_name TEXT NOT NULL,
            payee_account_no BIGINT NOT NULL,
            payee_sort_code TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
    `); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"failed ensuring tables (may already exist)\" err=%v", err)
	}

	// Initialize the RabbitMQ producer to publish transfer lifecycle events.
	// The broker is optional: the ledger degrades to fallback publishing.
	var eventProducer rabbitmq.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; event publishing disabled\" env=RABBITMQ_URL")
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else if producer, prodErr := rabbitmq.NewEventProducer(cfg.RabbitMQURL); prodErr != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", prodErr)
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else {
		defer producer.Close()
		eventProducer = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Load the partner bank directory from a file when configured, otherwise
	// use the built-in directory.
	directory := banks.DefaultDirectory()
	if strings.TrimSpace(cfg.PartnerBanksFile) != "" {
		directory, err = banks.LoadDirectory(cfg.PartnerBanksFile)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"partner bank directory load failed\" file=%s err=%v", cfg.PartnerBanksFile, err)
		}
		log.Printf("level=info component=bootstrap msg=\"partner bank directory loaded\" file=%s banks=%d", cfg.PartnerBanksFile, len(directory.ListBanks()))
	}

	// Initialize the partner bank client. The discovery resolver probes a
	// partner's API schema for banks configured with the auto method.
	partnerTimeout := time.Duration(cfg.PartnerTimeoutSeconds) * time.Second
	var resolver banks.EndpointResolver = banks.NewStaticResolver()
	if cfg.PartnerEndpointDiscovery {
		resolver = banks.NewDiscoveryResolver(partnerTimeout)
	}
	partnerClient := partnerclient.NewClient(partnerTimeout, resolver)

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	ledgerService := app.NewService(repository, directory, partnerClient, eventProducer, cfg.EventExchange)

	// Initialize the API handlers and router.
	ledgerHandlers := api.NewLedgerHandlers(ledgerService)
	router := api.LedgerRoutes(ledgerHandlers, cfg.AllowedOriginsList())

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
