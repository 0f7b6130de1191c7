package main

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"github.com/himanishpuri/Empreinte/pkg/empreinte"
	"github.com/himanishpuri/Empreinte/pkg/logger"
)

var (
	port           int
	dbPath         string
	backend        string
	tempDir        string
	strategy       string
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("EMPREINTE_DB_PATH", "empreinte.sqlite3"), "Path to the index")
	flag.StringVar(&backend, "backend", getEnvOrDefault("EMPREINTE_BACKEND", "sqlite"), "Index backend: sqlite, badger or memory")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("EMPREINTE_TEMP_DIR", os.TempDir()), "Temporary directory")
	flag.StringVar(&strategy, "strategy", "", "Matching strategy: offset or hashcount")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()
	flag.Parse()

	log := logger.GetLogger().Named("server")

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	cfg, err := empreinte.PipelineConfigFromEnv("EMPREINTE")
	if err != nil {
		log.Fatalf("Invalid configuration: %+v", xerrors.New(err))
	}
	if strategy != "" {
		cfg.Strategy = strategy
	}

	service, err := empreinte.NewService(
		empreinte.WithDBPath(dbPath),
		empreinte.WithBackend(backend),
		empreinte.WithTempDir(tempDir),
		empreinte.WithConfig(cfg),
		empreinte.WithLogger(logger.GetLogger().Named("engine")),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %+v", xerrors.New(err))
	}
	defer service.Close()

	serverConfig := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		Backend:        backend,
		TempDir:        tempDir,
		SampleRate:     cfg.SampleRate,
		Strategy:       cfg.Strategy,
		AllowedOrigins: origins,
	}

	server := NewServer(service, serverConfig)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %+v", xerrors.New(err))
	}
}
