package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/starford/healthlib/internal"
	"github.com/starford/healthlib/internal/apperr"
	"github.com/starford/healthlib/internal/collector"
	"github.com/starford/healthlib/internal/draftfile"
	"github.com/starford/healthlib/internal/models"
)

const collectHelp = `search <query>          find pages on the web
results                 list the last search results
preview <n|url>         extract a result (or any URL) into a draft
show                    show the draft under review
edit                    open the draft in your editor
set <field> <value>     field: title, summary, content, source, category, tier
import                  add the draft to the knowledge base
cancel                  discard the draft
lang                    switch between zh and en
quit                    leave`

func editorCommand(app *internal.App) string {
	if app.Config.App.Editor != "" {
		return app.Config.App.Editor
	}
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "vi"
}

func collectLoop(ctx context.Context, app *internal.App, in io.Reader, w io.Writer) error {
	c := app.NewCollector()

	go watchStatus(ctx, app, os.Stderr)

	titleColor.Fprintln(w, app.T("collector.title"))
	restored, err := c.Restore()
	if err != nil {
		return err
	}
	if restored {
		printNotice(w, app.T("collector.restored"))
		printDraft(w, app, c.Snapshot().Review)
	}
	faintColor.Fprintln(w, collectHelp)

	lines := newLineReader(in)
	defer lines.Close()
	for {
		promptColor.Fprintf(w, "[%s] > ", c.Snapshot().Stage)
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
		if err := collectStep(ctx, app, c, w, verb, rest); err != nil {
			switch {
			case errors.Is(err, apperr.ErrNoReviewItem):
				faintColor.Fprintln(w, app.T("collector.no_review_item"))
			case errors.Is(err, apperr.ErrBlankInput):
				faintColor.Fprintln(w, collectHelp)
			case errors.Is(err, apperr.ErrBusy), errors.Is(err, apperr.ErrNotFound),
				errors.Is(err, models.ErrUnknownCategory), errors.Is(err, models.ErrInvalidTier):
				printBanner(w, err.Error())
			}
		}

		s := c.Snapshot()
		printBanner(w, s.Banner)
		printNotice(w, s.Notice)
		c.DismissMessages()
	}
}

// collectStep runs one pipeline command. Backend failures are reported through
// the controller's banner, so their errors only matter for logging.
func collectStep(ctx context.Context, app *internal.App, c *collector.Controller, w io.Writer, verb, rest string) error {
	lang := app.Locale.Current()

	switch verb {
	case "":
		return nil
	case "help", "?":
		faintColor.Fprintln(w, collectHelp)
	case "lang":
		app.Locale.Toggle()
	case "search":
		if err := c.Search(ctx, lang, rest); err != nil {
			return err
		}
		printWebResults(w, app, c.Snapshot().Results)
	case "results":
		printWebResults(w, app, c.Snapshot().Results)
	case "preview":
		target := rest
		if n, err := strconv.Atoi(rest); err == nil {
			url, err := c.ResultURL(n - 1)
			if err != nil {
				return err
			}
			target = url
		}
		if err := c.Preview(ctx, lang, target); err != nil {
			return err
		}
		printDraft(w, app, c.Snapshot().Review)
	case "show":
		printDraft(w, app, c.Snapshot().Review)
	case "edit":
		review := c.Snapshot().Review
		if review == nil {
			return apperr.ErrNoReviewItem
		}
		edited, changed, err := draftfile.Edit(ctx, editorCommand(app), *review)
		if err != nil {
			printBanner(w, err.Error())
			return err
		}
		if !changed {
			return nil
		}
		if err := c.Edit(func(p *models.ContentPreview) { *p = edited }); err != nil {
			return err
		}
		printDraft(w, app, c.Snapshot().Review)
	case "set":
		field, value := splitCommand(rest)
		if err := setField(c, field, value); err != nil {
			return err
		}
		printDraft(w, app, c.Snapshot().Review)
	case "import":
		res, err := c.Import(ctx, lang)
		if err != nil {
			return err
		}
		faintColor.Fprintf(w, "id=%s status=%s\n", res.ID, res.Status)
	case "cancel":
		if c.Snapshot().Review == nil {
			return apperr.ErrNoReviewItem
		}
		c.Cancel()
		printNotice(w, app.T("collector.cancelled"))
	default:
		faintColor.Fprintln(w, collectHelp)
	}
	return nil
}

func setField(c *collector.Controller, field, value string) error {
	switch field {
	case "title":
		return c.SetTitle(value)
	case "summary":
		return c.SetSummary(value)
	case "content":
		return c.SetContent(strings.ReplaceAll(value, `\n`, "\n"))
	case "source", "source_name":
		return c.SetSourceName(value)
	case "category":
		id, err := models.ParseCategoryID(value)
		if err != nil {
			return err
		}
		return c.SetCategory(id)
	case "tier":
		tier, err := models.ParseTier(value)
		if err != nil {
			return err
		}
		return c.SetTier(tier)
	}
	return fmt.Errorf("unknown field %q: %w", field, apperr.ErrNotFound)
}
