package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/starford/healthlib/internal"
	"github.com/starford/healthlib/internal/collector"
	"github.com/starford/healthlib/internal/events"
	"github.com/starford/healthlib/internal/models"
)

var (
	titleColor  = color.New(color.Bold)
	faintColor  = color.New(color.Faint)
	bannerColor = color.New(color.FgRed, color.Bold)
	noticeColor = color.New(color.FgGreen, color.Bold)
	promptColor = color.New(color.FgCyan, color.Bold)
	userColor   = color.New(color.FgCyan)
)

func tierColor(t models.Tier) *color.Color {
	switch t {
	case models.TierGuideline:
		return color.New(color.FgGreen)
	case models.TierMedical:
		return color.New(color.FgBlue)
	case models.TierResearch:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

func tierBadge(app *internal.App, t models.Tier) string {
	if t == 0 {
		return ""
	}
	return tierColor(t).Sprintf("[%d %s]", int(t), app.T(t.LabelKey()))
}

func categoryLabel(app *internal.App, id models.CategoryID) string {
	if id == "" {
		return ""
	}
	return app.T("cat." + string(id))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printBanner(w io.Writer, msg string) {
	if msg != "" {
		bannerColor.Fprintln(w, "! "+msg)
	}
}

func printNotice(w io.Writer, msg string) {
	if msg != "" {
		noticeColor.Fprintln(w, "✓ "+msg)
	}
}

func printCategories(w io.Writer, app *internal.App, cats []models.Category) {
	titleColor.Fprintln(w, app.T("browse.sidebar.title"))
	for _, c := range cats {
		name := c.Name
		if app.Locale.Current() == models.LangEN && c.NameEN != "" {
			name = c.NameEN
		}
		fmt.Fprintf(w, "  %-12s %s %s\n", c.ID, name, faintColor.Sprintf("(%d)", c.Count))
	}
}

func printResults(w io.Writer, app *internal.App, results []models.SearchResult) {
	if len(results) == 0 {
		faintColor.Fprintln(w, app.T("browse.empty"))
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%2d. %s %s\n", i+1, tierBadge(app, r.Metadata.Tier), titleColor.Sprint(r.Metadata.Title))
		meta := []string{}
		if r.Metadata.Source != "" {
			meta = append(meta, app.T("browse.source")+" "+r.Metadata.Source)
		}
		if label := categoryLabel(app, r.Metadata.Category); label != "" {
			meta = append(meta, label)
		}
		if r.RelevanceScore < models.BrowseScore {
			meta = append(meta, fmt.Sprintf("%s %.0f%%", app.T("chat.relevance"), r.RelevanceScore*100))
		}
		faintColor.Fprintf(w, "    %s  id=%s\n", strings.Join(meta, " · "), r.ID)
		fmt.Fprintf(w, "    %s\n", truncate(r.Content, 160))
	}
}

func printItem(w io.Writer, app *internal.App, item models.KnowledgeItem) {
	fmt.Fprintf(w, "%s %s\n", tierBadge(app, item.Tier), titleColor.Sprint(item.Title))
	faintColor.Fprintf(w, "%s %s  %s %s\n",
		app.T("browse.source"), item.Source,
		app.T("browse.modal.category"), categoryLabel(app, item.Category))
	if item.SourceURL != "" {
		faintColor.Fprintf(w, "%s: %s\n", app.T("browse.modal.view_original"), item.SourceURL)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, item.Content)
}

func printReply(w io.Writer, app *internal.App, msg models.ChatMessage, confidence models.Confidence) {
	fmt.Fprintln(w, msg.Content)
	if confidence != "" {
		faintColor.Fprintf(w, "(%s)\n", app.T("chat.confidence."+string(confidence)))
	}
	if len(msg.Sources) == 0 {
		return
	}
	titleColor.Fprintln(w, app.T("chat.sources"))
	for _, s := range msg.Sources {
		line := fmt.Sprintf("  %s %s", tierBadge(app, s.Tier), s.Title)
		if s.Source != "" {
			line += " · " + s.Source
		}
		fmt.Fprintln(w, line)
		faintColor.Fprintf(w, "    %s %.0f%%  %s\n", app.T("chat.relevance"), s.RelevanceScore*100, s.URL)
	}
}

func printWebResults(w io.Writer, app *internal.App, results []models.WebSearchResult) {
	if len(results) == 0 {
		faintColor.Fprintln(w, app.T("collector.no_results"))
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%2d. %s %s\n", i+1, titleColor.Sprint(r.Title), faintColor.Sprint(r.Source))
		faintColor.Fprintf(w, "    %s\n", r.URL)
		fmt.Fprintf(w, "    %s\n", truncate(r.Snippet, 160))
	}
}

func printDraft(w io.Writer, app *internal.App, p *models.ContentPreview) {
	if p == nil {
		faintColor.Fprintln(w, app.T("collector.no_review_item"))
		return
	}
	fmt.Fprintf(w, "%s %s\n", tierBadge(app, p.Tier), titleColor.Sprint(p.Title))
	faintColor.Fprintf(w, "url:      %s\n", p.URL)
	faintColor.Fprintf(w, "category: %s (%s)\n", p.Category, categoryLabel(app, p.Category))
	faintColor.Fprintf(w, "source:   %s\n", p.SourceName)
	fmt.Fprintf(w, "summary:  %s\n", truncate(p.Summary, 240))
	fmt.Fprintf(w, "content:  %s\n", truncate(p.Content, 240))
}

// watchStatus prints busy indicators published by the controllers until ctx ends.
func watchStatus(ctx context.Context, app *internal.App, w io.Writer) {
	sub := app.Events.Subscribe()
	defer app.Events.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if msg := statusText(app, ev); msg != "" {
				faintColor.Fprintln(w, msg)
			}
		}
	}
}

func statusText(app *internal.App, ev events.Event) string {
	switch ev.Type {
	case events.ChatSending:
		if sending, _ := ev.Data.(bool); sending {
			return app.T("chat.thinking")
		}
	case events.BrowseLoading:
		if loading, _ := ev.Data.(bool); loading {
			return app.T("browse.loading")
		}
	case events.CollectorState:
		switch ev.Data {
		case collector.StageSearching:
			return app.T("collector.searching")
		case collector.StagePreviewing:
			return app.T("collector.previewing")
		case collector.StageImporting:
			return app.T("collector.importing")
		}
	case events.LocaleChanged:
		if lang, ok := ev.Data.(models.Lang); ok {
			return "lang: " + string(lang)
		}
	}
	return ""
}
