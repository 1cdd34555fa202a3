// Package draftfile converts the item under review to and from a Markdown
// document with YAML frontmatter, so it can be edited in a text editor.
package draftfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/healthlib/internal/checksum"
	"github.com/starford/healthlib/internal/models"
)

const delim = "---"

// ErrNoFrontmatter is returned when a document does not start with a frontmatter block.
var ErrNoFrontmatter = errors.New("draftfile: missing frontmatter")

type frontmatter struct {
	Title      string `yaml:"title"`
	Category   string `yaml:"category"`
	Tier       int    `yaml:"tier"`
	SourceName string `yaml:"source_name"`
	URL        string `yaml:"url"`
	Summary    string `yaml:"summary"`
}

// Render writes p as frontmatter followed by the content as the body.
func Render(p models.ContentPreview) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{
		Title:      p.Title,
		Category:   string(p.Category),
		Tier:       int(p.Tier),
		SourceName: p.SourceName,
		URL:        p.URL,
		Summary:    p.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("draftfile: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(fm)
	buf.WriteString(delim + "\n")
	buf.WriteString(p.Content)
	return buf.Bytes(), nil
}

// Parse reads a document produced by Render (possibly edited). Category and
// tier must be known values. When the title is empty the first H1 of the body
// is used.
func Parse(data []byte) (models.ContentPreview, error) {
	block, body, err := split(data)
	if err != nil {
		return models.ContentPreview{}, err
	}

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return models.ContentPreview{}, fmt.Errorf("draftfile: parse frontmatter: %w", err)
	}
	category, err := models.ParseCategoryID(fm.Category)
	if err != nil {
		return models.ContentPreview{}, err
	}
	tier, err := models.TierFromInt(fm.Tier)
	if err != nil {
		return models.ContentPreview{}, err
	}

	title := fm.Title
	if title == "" {
		title = firstHeading(body)
	}
	return models.ContentPreview{
		Title:      title,
		Category:   category,
		Summary:    fm.Summary,
		Content:    body,
		Tier:       tier,
		SourceName: fm.SourceName,
		URL:        fm.URL,
	}, nil
}

// split separates the frontmatter block from the body. The body is returned
// exactly as written after the closing delimiter line.
func split(data []byte) ([]byte, string, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", ErrNoFrontmatter
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", ErrNoFrontmatter
	}
	block := rest[:idx]
	after := rest[idx+1+len(delim):]
	// Drop the remainder of the delimiter line.
	if nl := bytes.IndexByte(after, '\n'); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = nil
	}
	return block, string(after), nil
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Edit opens p in editor and returns the edited draft. changed is false when
// the file was saved without modification. The URL is never taken from the file.
func Edit(ctx context.Context, editor string, p models.ContentPreview) (edited models.ContentPreview, changed bool, err error) {
	if editor == "" {
		editor = "vi"
	}
	data, err := Render(p)
	if err != nil {
		return p, false, err
	}

	f, err := os.CreateTemp("", "healthlib-draft-*.md")
	if err != nil {
		return p, false, fmt.Errorf("draftfile: create temp: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return p, false, fmt.Errorf("draftfile: write temp: %w", err)
	}
	if err := f.Close(); err != nil {
		return p, false, fmt.Errorf("draftfile: close temp: %w", err)
	}

	args := strings.Fields(editor)
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return p, false, fmt.Errorf("draftfile: run editor: %w", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		return p, false, fmt.Errorf("draftfile: read back: %w", err)
	}
	if checksum.Sum(out) == checksum.Sum(data) {
		return p, false, nil
	}

	edited, err = Parse(out)
	if err != nil {
		return p, false, err
	}
	edited.URL = p.URL
	return edited, edited != p, nil
}
