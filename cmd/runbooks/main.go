// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/runbooks"
	"github.com/poiesic/runbooks/ai"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/ingestion"
	"github.com/poiesic/runbooks/reindex"
	"github.com/poiesic/runbooks/search"
	"github.com/poiesic/runbooks/source/confluence"
	"github.com/urfave/cli/v2"
)

const defaultEnvFile = ".env"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "runbooks",
		Usage: "Bulk-ingest Confluence runbooks into a searchable index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file",
				Value: defaultEnvFile,
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return loadEnvFile(c)
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Fetch, extract and index Confluence pages in one job",
				ArgsUsage: "[page-id...]",
				Action:    ingestCommand,
				Flags: append(storeFlags(), append(confluenceFlags(),
					&cli.IntFlag{
						Name:    "concurrency",
						Aliases: []string{"c"},
						Usage:   "Maximum pages processed at once (1-20)",
						Value:   core.DefaultConcurrencyLimit,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of workers shared by all jobs",
						Value: ingestion.DefaultPoolSize,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read page ids from a file, one per line",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the job summary and statistics as JSON",
					},
				)...),
			},
			{
				Name:      "search",
				Usage:     "Semantic search over indexed runbooks",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of runbooks to return",
						Value:   5,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Lowest chunk similarity considered a match",
						Value: float64(search.DefaultMinSimilarity),
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Log each search stage to stderr",
					},
				),
			},
			{
				Name:   "list",
				Usage:  "List indexed runbooks",
				Action: listCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runbooks to list",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of runbooks to skip",
						Value: 0,
					},
				),
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed all indexed runbooks with the configured embedding model",
				Action: reindexCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of runbooks embedded together",
						Value: reindex.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each embedding call",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:      "search-pages",
				Usage:     "Search Confluence for candidate pages",
				ArgsUsage: "<text>",
				Action:    searchPagesCommand,
				Flags: append(confluenceFlags(),
					&cli.StringFlag{
						Name:  "space",
						Usage: "Restrict the search to a space key",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of pages to return (1-100)",
						Value: 25,
					},
				),
			},
		},
	}
}

// storeFlags are shared by every command that opens the runbook database.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			EnvVars:  []string{"RUNBOOKS_DB"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			EnvVars: []string{"EMBEDDING_HOST"},
			Value:   ai.DefaultConfig().EmbeddingHost,
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			EnvVars: []string{"EMBEDDING_MODEL"},
			Value:   ai.DefaultConfig().EmbeddingModel,
		},
		&cli.StringFlag{
			Name:    "embedding-token",
			Usage:   "API token for the embedding service",
			EnvVars: []string{"EMBEDDING_API_TOKEN", "OPENAI_API_KEY"},
		},
	}
}

func confluenceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "confluence-url",
			Usage:   "Confluence site URL",
			EnvVars: []string{confluence.EnvURL},
		},
		&cli.StringFlag{
			Name:    "confluence-username",
			Usage:   "Confluence username",
			EnvVars: []string{confluence.EnvUsername},
		},
		&cli.StringFlag{
			Name:    "confluence-token",
			Usage:   "Confluence API token",
			EnvVars: []string{confluence.EnvAPIToken},
		},
	}
}

func aiConfig(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIToken(c.String("embedding-token")),
	)
}

func confluenceConfig(c *cli.Context) (*confluence.Config, error) {
	cfg, err := confluence.ConfigFromEnv(
		confluence.WithURL(c.String("confluence-url")),
		confluence.WithCredentials(c.String("confluence-username"), c.String("confluence-token")),
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (set the flags or the environment variables)", err)
	}
	return cfg, nil
}

func openDatabase(c *cli.Context, opts ...runbooks.DatabaseOption) (*runbooks.Database, error) {
	opts = append([]runbooks.DatabaseOption{runbooks.WithAIConfig(aiConfig(c))}, opts...)
	db, err := runbooks.Open(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadEnvFile loads --env-file into the environment. A missing default file
// is ignored; a missing file named explicitly is an error. Variables already
// set in the environment win.
func loadEnvFile(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !c.IsSet("env-file") {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	slog.Debug("loaded environment file", "path", path)
	return nil
}
