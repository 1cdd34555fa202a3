package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// WebSearchResult is an external page discovered by the collector.
type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// ContentPreview is the machine-extracted draft of a web page awaiting review.
// Every field except URL may be edited before import.
type ContentPreview struct {
	Title      string     `json:"title"`
	Category   CategoryID `json:"category"`
	Summary    string     `json:"summary"`
	Content    string     `json:"content"`
	Tier       Tier       `json:"tier"`
	SourceName string     `json:"source_name"`
	URL        string     `json:"url"`
}

// Validate checks that the draft is complete enough to import.
func (p *ContentPreview) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Content, validation.Required),
		validation.Field(&p.URL, validation.Required),
		validation.Field(&p.Category, validation.Required, validation.In(
			CategoryGeneral, CategoryHeartRate, CategoryHRV, CategorySleep, CategoryExercise, CategoryStress,
		)),
		validation.Field(&p.Tier, validation.Required, validation.Min(TierGuideline), validation.Max(TierReference)),
	)
}

// ImportResult acknowledges an imported document.
type ImportResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
