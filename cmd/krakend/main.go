// Command krakend is the kraken control-node server: it connects storage,
// wires the application, mounts the REST surface, and runs until
// interrupted.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	app "github.com/kraken-ng/kraken/internal/app"
	"github.com/kraken-ng/kraken/internal/app/aggregator"
	"github.com/kraken-ng/kraken/internal/app/httpapi"
	"github.com/kraken-ng/kraken/internal/app/metrics"
	"github.com/kraken-ng/kraken/internal/app/storage/postgres"
	"github.com/kraken-ng/kraken/internal/app/ws"
	"github.com/kraken-ng/kraken/internal/config"
	"github.com/kraken-ng/kraken/internal/platform/database"
	"github.com/kraken-ng/kraken/internal/platform/migrations"
	"github.com/kraken-ng/kraken/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logg := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	rootCtx := context.Background()

	var (
		db     *sql.DB
		stores app.Stores
		opts   []app.Option
	)
	db, err = database.Open(rootCtx, cfg.DSN(), database.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(rootCtx, db); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	store := postgres.New(db)
	stores = app.Stores{
		DB:         store,
		Workspaces: store,
		Users:      store,
		Hosts:      store,
		Ports:      store,
		Services:   store,
		HttpSvcs:   store,
		Domains:    store,
		Tags:       store,
		Attacks:    store,
		Raw:        store,
		Provenance: store,
		Findings:   store,
		Searches:   store,
		Editor:     store,
	}

	broadcaster := ws.NewBroadcaster(func(wsID, userID uuid.UUID) bool {
		ok, err := store.IsMember(rootCtx, wsID, userID)
		return err == nil && ok
	}, logg)

	opts = append(opts,
		app.WithNotifier(broadcaster),
		app.WithLocker(aggregator.NewPostgresAdvisoryLocker(db)),
		app.WithSpillDir(filepath.Join(cfg.Storage.DataDir, "editor-spill")),
		app.WithSessionKey([]byte(cfg.Security.SessionKey)),
	)

	application, err := app.New(stores, logg, opts...)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	if err := application.Start(rootCtx); err != nil {
		log.Fatalf("start application: %v", err)
	}

	handler := httpapi.New(
		application.Attacks,
		stores.Attacks,
		stores.Hosts,
		stores.Ports,
		stores.Services,
		stores.HttpSvcs,
		stores.Domains,
		application.Search,
		stores.Searches,
		application.Provenance,
		application.Descriptors,
		logg,
	)

	addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.InstrumentHandler(handler.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.WithField("addr", addr).Info("kraken http api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.WithField("error", err).Warn("http shutdown interrupted")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
