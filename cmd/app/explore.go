package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/starford/healthlib/internal"
	"github.com/starford/healthlib/internal/browse"
	"github.com/starford/healthlib/internal/models"
)

const exploreHelp = `cat <id|all>     browse one category (or all)
categories       list categories
search <query>   search within the selected category (blank browses)
list             show the current results
open <n>         read result n in full
close            close the open item
lang             switch between zh and en
quit             leave`

func exploreLoop(ctx context.Context, app *internal.App, in io.Reader, w io.Writer) error {
	c := app.NewBrowse()

	go watchStatus(ctx, app, os.Stderr)

	titleColor.Fprintln(w, app.T("browse.title"))
	faintColor.Fprintln(w, app.T("browse.subtitle"))
	if err := c.Init(ctx, app.Locale.Current()); err != nil {
		printBanner(w, app.T("browse.failed"))
	}
	printCategories(w, app, c.Snapshot().Categories)
	printResults(w, app, c.Snapshot().Results)
	faintColor.Fprintln(w, exploreHelp)

	lines := newLineReader(in)
	defer lines.Close()
	for {
		promptColor.Fprintf(w, "[%s] > ", exploreScope(app, c.Snapshot()))
		line, err := lines.Next(ctx)
		if err != nil {
			fmt.Fprintln(w)
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		verb, rest := splitCommand(line)
		if verb == "quit" || verb == "exit" {
			return nil
		}
		if err := exploreStep(ctx, app, c, w, verb, rest); err != nil {
			printBanner(w, err.Error())
		}
	}
}

func exploreScope(app *internal.App, s browse.Snapshot) string {
	scope := app.T("browse.all_categories")
	if s.Category != nil {
		scope = categoryLabel(app, *s.Category)
	}
	if s.Mode == browse.ModeSearch {
		scope += ": " + s.Query
	}
	return scope
}

// exploreStep runs one browse command. Reload failures surface through the
// controller banner and keep the previous results on screen.
func exploreStep(ctx context.Context, app *internal.App, c *browse.Controller, w io.Writer, verb, rest string) error {
	lang := app.Locale.Current()

	switch verb {
	case "":
		return nil
	case "help", "?":
		faintColor.Fprintln(w, exploreHelp)
	case "categories":
		if err := c.LoadCategories(ctx, lang); err != nil {
			printBanner(w, app.T("browse.failed"))
		}
		printCategories(w, app, c.Snapshot().Categories)
	case "cat":
		var id *models.CategoryID
		if rest != "" && rest != "all" {
			parsed, err := models.ParseCategoryID(rest)
			if err != nil {
				return err
			}
			id = &parsed
		}
		_ = c.SelectCategory(ctx, lang, id)
		printReload(w, app, c)
	case "search":
		c.SetQuery(rest)
		_ = c.SubmitSearch(ctx, lang)
		printReload(w, app, c)
	case "list":
		printResults(w, app, c.Snapshot().Results)
	case "open":
		n, err := strconv.Atoi(rest)
		results := c.Snapshot().Results
		if err != nil || n < 1 || n > len(results) {
			faintColor.Fprintln(w, exploreHelp)
			return nil
		}
		printItem(w, app, c.OpenDetail(ctx, lang, results[n-1]))
	case "close":
		c.CloseDetail()
	case "lang":
		lang = app.Locale.Toggle()
		_ = c.SetLanguage(ctx, lang)
		s := c.Snapshot()
		printBanner(w, s.Banner)
		if s.Detail != nil {
			printItem(w, app, *s.Detail)
			return nil
		}
		printResults(w, app, s.Results)
	default:
		faintColor.Fprintln(w, exploreHelp)
	}
	return nil
}

func printReload(w io.Writer, app *internal.App, c *browse.Controller) {
	s := c.Snapshot()
	printBanner(w, s.Banner)
	printResults(w, app, s.Results)
}
