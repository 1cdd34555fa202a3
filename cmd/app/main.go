package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/healthlib/internal"
	"github.com/starford/healthlib/internal/apperr"
	"github.com/starford/healthlib/internal/browse"
	"github.com/starford/healthlib/internal/mcpserver"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/transport"
	pkgconfig "github.com/starford/healthlib/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("lang") {
		cfg.App.Lang = cmd.String("lang")
	}
	if cmd.IsSet("api") {
		cfg.API.BaseURL = cmd.String("api")
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runApp(ctx context.Context, cmd *cli.Command, action internal.Action) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, action, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func categoryFlag(cmd *cli.Command) (*models.CategoryID, error) {
	raw := cmd.String("category")
	if raw == "" {
		return nil, nil
	}
	id, err := models.ParseCategoryID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func categoriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List knowledge categories with item counts",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				c := app.NewBrowse()
				if err := c.LoadCategories(ctx, app.Locale.Current()); err != nil {
					return err
				}
				printCategories(os.Stdout, app, c.Snapshot().Categories)
				return nil
			})
		},
	}
}

func browseCommand() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse knowledge items, optionally filtered by category and tier",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Category id (general, heart_rate, hrv, sleep, exercise, stress)"},
			&cli.IntFlag{Name: "tier", Usage: "Source tier 1-4"},
			&cli.IntFlag{Name: "page", Usage: "Page number", Value: transport.DefaultPage},
			&cli.IntFlag{Name: "page-size", Usage: "Items per page", Value: transport.DefaultPageSize},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			category, err := categoryFlag(cmd)
			if err != nil {
				return err
			}
			params := transport.BrowseParams{
				Category: category,
				Page:     int(cmd.Int("page")),
				PageSize: int(cmd.Int("page-size")),
			}
			if cmd.IsSet("tier") {
				tier, err := models.TierFromInt(int(cmd.Int("tier")))
				if err != nil {
					return err
				}
				params.Tier = &tier
			}
			paged := params.Tier != nil || params.Page != transport.DefaultPage

			return runApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				lang := app.Locale.Current()
				if !paged {
					c := app.NewBrowse(browse.WithPageSize(params.PageSize))
					err := c.SelectCategory(ctx, lang, category)
					printBanner(os.Stderr, c.Snapshot().Banner)
					if err != nil {
						return err
					}
					printResults(os.Stdout, app, c.Snapshot().Results)
					return nil
				}

				// Tier filters and later pages are not part of the browse view state.
				page, err := app.Client.BrowsePage(ctx, params, lang)
				if err != nil {
					printBanner(os.Stderr, app.T("browse.failed"))
					return err
				}
				printResults(os.Stdout, app, page.SearchResults())
				faintColor.Fprintf(os.Stdout, "page %d · %d/%d\n", page.Page, len(page.Items), page.Total)
				return nil
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the knowledge base (a blank query browses instead)",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Restrict the search to one category"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := joinArgs(cmd.Args().Slice())
			category, err := categoryFlag(cmd)
			if err != nil {
				return err
			}

			return runApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				var opts []browse.Option
				if category != nil {
					opts = append(opts, browse.WithCategory(*category))
				}
				c := app.NewBrowse(opts...)
				c.SetQuery(query)
				err := c.SubmitSearch(ctx, app.Locale.Current())
				printBanner(os.Stderr, c.Snapshot().Banner)
				if err != nil {
					return err
				}
				printResults(os.Stdout, app, c.Snapshot().Results)
				return nil
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one knowledge item in full",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("show: id is required")
			}
			return runApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				item := app.NewBrowse().OpenDetail(ctx, app.Locale.Current(), models.SearchResult{ID: id})
				if item.Title == "" && item.Content == "" {
					return fmt.Errorf("show %s: %w", id, apperr.ErrNotFound)
				}
				printItem(os.Stdout, app, item)
				return nil
			})
		},
	}
}

func exploreCommand() *cli.Command {
	return &cli.Command{
		Name:  "explore",
		Usage: "Browse and search the knowledge base interactively",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				return exploreLoop(ctx, app, os.Stdin, os.Stdout)
			})
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the health assistant",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "resume", Usage: "Continue the most recent conversation"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			resume := cmd.Bool("resume")
			return runApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				return chatLoop(ctx, app, os.Stdin, os.Stdout, resume)
			})
		},
	}
}

func collectCommand() *cli.Command {
	return &cli.Command{
		Name:  "collect",
		Usage: "Find web pages, review their extracted drafts and import them",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				return collectLoop(ctx, app, os.Stdin, os.Stdout)
			})
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve read-only knowledge tools to LLM agents over stdio (MCP)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				srv := mcpserver.New(app.Client, app.Locale.Current(), app.Logger)
				err := srv.Serve(ctx, os.Stdin, os.Stdout)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "healthlib",
		Usage: "Browse evidence-based health guidance, ask the assistant and curate new sources",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "lang",
				Aliases: []string{"l"},
				Usage:   "Display and content language (zh or en)",
				Sources: cli.EnvVars("HEALTHLIB_LANG"),
			},
			&cli.StringFlag{
				Name:    "api",
				Usage:   "Backend base URL",
				Sources: cli.EnvVars("HEALTHLIB_API_URL"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level",
			},
		},
		Commands: []*cli.Command{
			categoriesCommand(),
			browseCommand(),
			searchCommand(),
			showCommand(),
			exploreCommand(),
			chatCommand(),
			collectCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
