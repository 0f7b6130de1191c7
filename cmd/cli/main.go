package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"github.com/himanishpuri/Empreinte/pkg/empreinte"
	"github.com/himanishpuri/Empreinte/pkg/logger"
)

// Global flags
var (
	dbPath   string
	backend  string
	tempDir  string
	strategy string
	workers  int
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	bold   = color.New(color.Bold)
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("EMPREINTE_DB_PATH", "empreinte.sqlite3"), "Path to the index (SQLite file or badger directory)")
	flag.StringVar(&backend, "backend", getEnvOrDefault("EMPREINTE_BACKEND", "sqlite"), "Index backend: sqlite, badger or memory")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("EMPREINTE_TEMP_DIR", os.TempDir()), "Directory for temporary audio conversion files")
	flag.StringVar(&strategy, "strategy", "", "Matching strategy: offset or hashcount (env: EMPREINTE_STRATEGY)")
	flag.IntVar(&workers, "workers", 0, "Worker goroutines (default: number of CPUs)")
	flag.Usage = printUsage
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a new Empreinte service with configured options
func createService() (empreinte.Service, error) {
	cfg, err := empreinte.PipelineConfigFromEnv("EMPREINTE")
	if err != nil {
		return nil, err
	}
	if strategy != "" {
		cfg.Strategy = strategy
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	return empreinte.NewService(
		empreinte.WithDBPath(dbPath),
		empreinte.WithBackend(backend),
		empreinte.WithTempDir(tempDir),
		empreinte.WithConfig(cfg),
	)
}

// errUsage marks a command invoked with missing arguments; its usage line
// has already been printed.
var errUsage = errors.New("usage")

// report logs err with a stack trace.
func report(err error) {
	err = xerrors.New(err)
	red.Printf("✗ %v\n", err)
	logger.GetLogger().Errorf("%+v", err)
}

// run dispatches one command. Handlers close the service before returning,
// so the process only exits once the index is flushed.
func run(command string, args []string) error {
	switch command {
	case "add":
		return handleAdd(args)
	case "match":
		return handleMatch(args)
	case "list":
		return handleList()
	case "delete":
		return handleDelete(args)
	case "fingerprint":
		return handleFingerprint(args)
	case "index":
		return handleIndex(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		return errUsage
	}
}

func main() {
	_ = godotenv.Load()

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	logger.GetLogger().Debugf("Executing command: %s", command)

	if err := run(command, args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			report(err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Empreinte - acoustic fingerprint engine")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  -db <path>          Index location (env: EMPREINTE_DB_PATH, default: empreinte.sqlite3)")
	fmt.Println("  -backend <name>     sqlite | badger | memory (env: EMPREINTE_BACKEND)")
	fmt.Println("  -temp <dir>         Temporary directory for ffmpeg conversion (env: EMPREINTE_TEMP_DIR)")
	fmt.Println("  -strategy <name>    offset | hashcount")
	fmt.Println("  -workers <n>        Worker goroutines")
	fmt.Println("\nUsage:")
	fmt.Println("  empreinte [global-options] add <audio_file> [-id <song_id>]")
	fmt.Println("  empreinte [global-options] match <audio_file>")
	fmt.Println("  empreinte [global-options] list")
	fmt.Println("  empreinte [global-options] delete <song_id>")
	fmt.Println("  empreinte [global-options] fingerprint <audio_file>")
	fmt.Println("  empreinte [global-options] index <dir>")
	fmt.Println("\nExamples:")
	fmt.Println("  empreinte add \"Darude - Sandstorm.mp3\"")
	fmt.Println("  empreinte -backend badger -db ./index match clip.wav")
}
