package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/orgkb/orgkb"
	"github.com/orgkb/orgkb/sqlite"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx       context.Context
	Stdout    io.Writer
	Stderr    io.Writer
	DB        *sqlite.DB
	Entities  *sqlite.EntityService
	Knowledge *sqlite.KnowledgeService
	Reference orgkb.EntityService // authoritative database, set for sync
	Extractor orgkb.Extractor
	Embedder  orgkb.Embedder
	Logger    *slog.Logger
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Ingest   IngestCmd   `cmd:"" help:"Process a directory of HTML pages into the knowledge store"`
	Sync     SyncCmd     `cmd:"" help:"Refresh the local entity cache from the reference database"`
	Entities EntitiesCmd `cmd:"" help:"List cached reference entities"`
	Report   ReportCmd   `cmd:"" help:"Show the report of the most recent run"`
}

// IngestCmd is the "ingest" subcommand.
type IngestCmd struct {
	Dir         string  `arg:"" help:"Directory of HTML pages, with an optional pages.yaml URL manifest"`
	Catalog     string  `short:"C" help:"Procedure catalog YAML file"`
	Artifacts   string  `short:"a" default:"annotated" help:"Directory for annotated audit pages"`
	Concurrency int     `short:"c" default:"4" help:"Concurrent page limit"`
	RPS         float64 `name:"rps" default:"1" help:"Model calls per second"`
	EmailDomain string  `help:"Restrict email anchors to this domain suffix"`
}

// SyncCmd is the "sync" subcommand.
type SyncCmd struct{}

// EntitiesCmd is the "entities" subcommand.
type EntitiesCmd struct{}

// ReportCmd is the "report" subcommand.
type ReportCmd struct{}
