// Package wire provides dependency injection for the doula application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	cliadapter "github.com/example/doulaboard/internal/adapters/cli"
	"github.com/example/doulaboard/internal/adapters/httpapi"
	"github.com/example/doulaboard/internal/adapters/notify"
	"github.com/example/doulaboard/internal/adapters/rest"
	"github.com/example/doulaboard/internal/adapters/sqlite"
	"github.com/example/doulaboard/internal/app"
	"github.com/example/doulaboard/internal/config"
	"github.com/example/doulaboard/internal/db"
	"github.com/example/doulaboard/internal/logging"
	"github.com/example/doulaboard/internal/metrics"
	"github.com/example/doulaboard/internal/ports/primary"
	"github.com/example/doulaboard/internal/ports/secondary"
)

var (
	configDir string

	cfg           *config.Config
	logger        *zap.Logger
	database      *sql.DB
	registry      *prometheus.Registry
	loaderMetrics *metrics.Loader
	clientRepo    *sqlite.ClientRepository
	clientService primary.ClientService
	lookup        secondary.ClientLookup
	lister        secondary.ClientLister
	once          sync.Once
)

// SetConfigDir selects the directory holding .doula/config.yaml.
// It must be called before any service is requested.
func SetConfigDir(dir string) {
	configDir = dir
}

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the application logger.
func Logger() *zap.Logger {
	once.Do(initServices)
	return logger
}

// ClientService returns the singleton ClientService instance.
func ClientService() primary.ClientService {
	once.Do(initServices)
	return clientService
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	dir := configDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		dir = wd
	}

	var err error
	cfg, err = config.LoadConfig(dir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err = logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	database, err = db.GetDB(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", cfg.DBPath), zap.Error(err))
	}

	registry = metrics.NewRegistry()
	loaderMetrics = metrics.NewLoader(registry)

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	clientRepo = sqlite.NewClientRepository(database)

	switch cfg.Lookup {
	case config.LookupREST:
		api := rest.New(cfg.APIBaseURL, logger.Named("rest"))
		lookup, lister = api, api
	default:
		lookup, lister = clientRepo, clientRepo
	}

	// Create services (primary ports implementation)
	clientService = app.NewClientService(clientRepo, logger.Named("clients"))

	logger.Debug("services initialized",
		zap.String("config_dir", dir),
		zap.String("lookup", cfg.Lookup),
		zap.String("db", cfg.DBPath))
}

// ClientAdapter returns a new ClientAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func ClientAdapter() *cliadapter.ClientAdapter {
	return ClientAdapterWithOutput(os.Stdout)
}

// ClientAdapterWithOutput returns a new ClientAdapter writing to the given output.
func ClientAdapterWithOutput(out io.Writer) *cliadapter.ClientAdapter {
	once.Do(initServices)
	return cliadapter.NewClientAdapter(clientService, out)
}

// LoaderAdapter mounts a deep-link session rendering to out. The returned
// func closes the session.
func LoaderAdapter(ctx context.Context, out io.Writer) (*cliadapter.LoaderAdapter, func(), error) {
	once.Do(initServices)

	router := notify.NewRouter(cfg.BasePath, logger.Named("router"))
	service := app.NewDeepLinkService(app.LoaderDeps{
		Lookup:       lookup,
		Lister:       lister,
		Notifier:     notify.NewToastWriter(out, logger.Named("toast")),
		Navigator:    router,
		Logger:       logger.Named("loader"),
		Metrics:      loaderMetrics,
		BasePath:     cfg.BasePath,
		FetchTimeout: cfg.FetchTimeout,
	})

	session, err := service.NewSession(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start loader: %w", err)
	}
	return cliadapter.NewLoaderAdapter(session, router, out), session.Close, nil
}

// HTTPServer returns the clients API server.
func HTTPServer() *httpapi.Server {
	once.Do(initServices)
	return httpapi.NewServer(httpapi.ServerDeps{
		Clients:  clientService,
		Lookup:   clientRepo,
		Lister:   clientRepo,
		Logger:   logger.Named("http"),
		Gatherer: registry,
	})
}

// Shutdown flushes the logger and closes the database.
func Shutdown() {
	if logger != nil {
		_ = logger.Sync()
	}
	if err := db.Close(); err != nil && logger != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
}
