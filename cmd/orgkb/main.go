package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/orgkb/orgkb/gemini"
	"github.com/orgkb/orgkb/postgres"
	orgkbslog "github.com/orgkb/orgkb/slog"
	"github.com/orgkb/orgkb/sqlite"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// SQLite database holding the entity cache and the knowledge store.
	DB *sqlite.DB

	// Services for end-to-end testing.
	EntityService    *sqlite.EntityService
	KnowledgeService *sqlite.KnowledgeService
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("orgkb"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'orgkb --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// Open database
	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set ORGKB_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	// Wire core services into dependencies
	m.EntityService = sqlite.NewEntityService(m.DB)
	m.KnowledgeService = sqlite.NewKnowledgeService(m.DB)
	deps.DB = m.DB
	deps.Entities = m.EntityService
	deps.Knowledge = m.KnowledgeService
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Wire command-specific dependencies based on command
	if cmd == "ingest" {
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			fmt.Fprintln(stderr, "GEMINI_API_KEY not set; structured extraction and embeddings are disabled for this run")
		} else {
			client, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  apiKey,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				fmt.Fprintln(stderr, "Hint: Check your GEMINI_API_KEY is valid")
				return fmt.Errorf("failed to connect to Gemini API: %w", err)
			}
			deps.Extractor = orgkbslog.NewLoggingExtractor(gemini.NewExtractor(client), deps.Logger)
			deps.Embedder = orgkbslog.NewLoggingEmbedder(gemini.NewEmbedder(client, embeddingDim), deps.Logger)
		}
	}

	if cmd == "sync" {
		dbURL := os.Getenv("ORGKB_DATABASE_URL")
		if dbURL == "" {
			return fmt.Errorf("ORGKB_DATABASE_URL not set. Point it at the reference employee database")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to reference database: %w", err)
		}
		defer pool.Close()
		deps.Reference = postgres.NewEntityService(pool)
	}

	return kongCtx.Run(deps)
}

// embeddingDim is the vector size requested from the embedding model.
// Chunk vectors and catalog description vectors must share it.
const embeddingDim = 768

func defaultDBPath() string {
	if path := os.Getenv("ORGKB_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "orgkb.db"
	}
	dir := filepath.Join(home, ".orgkb")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "orgkb.db")
}
