package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/starford/healthlib/internal"
	"github.com/starford/healthlib/internal/apperr"
	"github.com/starford/healthlib/internal/assistant"
)

const chatHelp = `/suggest      list starter questions
/<n>          ask starter question n
/lang         switch between zh and en
/new          start a new conversation
/quit         leave`

func chatSession(app *internal.App, resume bool) (string, error) {
	if resume {
		id, err := app.Store.LatestSession()
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
	}
	return app.Store.NewSession()
}

func chatLoop(ctx context.Context, app *internal.App, in io.Reader, w io.Writer, resume bool) error {
	sessionID, err := chatSession(app, resume)
	if err != nil {
		return fmt.Errorf("chat session: %w", err)
	}
	chat, err := app.NewAssistant(sessionID)
	if err != nil {
		return err
	}

	go watchStatus(ctx, app, os.Stderr)

	titleColor.Fprintln(w, app.T("chat.empty.title"))
	faintColor.Fprintln(w, app.T("chat.empty.subtitle"))
	if n := len(chat.Snapshot().Transcript); n > 0 {
		faintColor.Fprintf(w, "(%d messages)\n", n)
	}
	if err := chat.LoadSuggestions(ctx); err != nil {
		app.Logger.Warn("chat: suggestions unavailable", slog.String("error", err.Error()))
	}
	printSuggestions(w, chat)
	faintColor.Fprintln(w, chatHelp)

	lines := newLineReader(in)
	defer lines.Close()
	for {
		promptColor.Fprint(w, "> ")
		line, err := lines.Next(ctx)
		if err != nil {
			fmt.Fprintln(w)
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		text := line
		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			verb, _ := splitCommand(line)
			switch verb {
			case "/quit", "/exit":
				return nil
			case "/help":
				faintColor.Fprintln(w, chatHelp)
				continue
			case "/lang":
				app.Locale.Toggle()
				continue
			case "/suggest":
				if err := chat.LoadSuggestions(ctx); err != nil {
					printBanner(w, app.T("chat.error"))
				}
				printSuggestions(w, chat)
				continue
			case "/new":
				id, err := app.Store.NewSession()
				if err != nil {
					return fmt.Errorf("chat session: %w", err)
				}
				if chat, err = app.NewAssistant(id); err != nil {
					return err
				}
				faintColor.Fprintln(w, app.T("chat.empty.title"))
				continue
			}
			n, convErr := strconv.Atoi(strings.TrimPrefix(verb, "/"))
			if convErr != nil {
				faintColor.Fprintln(w, chatHelp)
				continue
			}
			if text, err = chat.UseSuggestion(n - 1); err != nil {
				faintColor.Fprintln(w, chatHelp)
				continue
			}
			userColor.Fprintln(w, text)
		}

		err = chat.Submit(ctx, app.Locale.Current(), text)
		if errors.Is(err, apperr.ErrBlankInput) || errors.Is(err, apperr.ErrBusy) {
			continue
		}

		s := chat.Snapshot()
		if len(s.Transcript) == 0 {
			continue
		}
		reply := s.Transcript[len(s.Transcript)-1]
		if err != nil {
			printBanner(w, reply.Content)
			continue
		}
		printReply(w, app, reply, s.Confidence)
	}
}

func printSuggestions(w io.Writer, chat *assistant.Controller) {
	for i, s := range chat.Snapshot().Suggestions {
		faintColor.Fprintf(w, "  /%d ", i+1)
		fmt.Fprintf(w, "%s %s\n", s.Question, faintColor.Sprintf("[%s]", s.Category))
	}
}
