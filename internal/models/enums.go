// Package models defines the domain types shared by the healthlib client.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownLang       = errors.New("unknown language")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrInvalidTier       = errors.New("invalid tier")
	ErrUnknownRole       = errors.New("unknown role")
	ErrUnknownConfidence = errors.New("unknown confidence")
)

// Lang selects which language variant of content and UI strings is used.
type Lang string

const (
	LangZH Lang = "zh"
	LangEN Lang = "en"
)

// DefaultLang is used when nothing else is configured.
const DefaultLang = LangZH

// ParseLang converts s into a Lang. Empty input yields DefaultLang.
func ParseLang(s string) (Lang, error) {
	switch Lang(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultLang, nil
	case LangZH:
		return LangZH, nil
	case LangEN:
		return LangEN, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLang, s)
}

// Other returns the language a toggle switches to.
func (l Lang) Other() Lang {
	if l == LangEN {
		return LangZH
	}
	return LangEN
}

func (l Lang) String() string { return string(l) }

// CategoryID is the stable, language-independent identifier of a category.
type CategoryID string

const (
	CategoryGeneral   CategoryID = "general"
	CategoryHeartRate CategoryID = "heart_rate"
	CategoryHRV       CategoryID = "hrv"
	CategorySleep     CategoryID = "sleep"
	CategoryExercise  CategoryID = "exercise"
	CategoryStress    CategoryID = "stress"
)

// CategoryIDs lists every known category in display order.
var CategoryIDs = []CategoryID{
	CategoryGeneral,
	CategoryHeartRate,
	CategoryHRV,
	CategorySleep,
	CategoryExercise,
	CategoryStress,
}

// ParseCategoryID converts s into a CategoryID, rejecting unknown values.
func ParseCategoryID(s string) (CategoryID, error) {
	c := CategoryID(strings.TrimSpace(s))
	for _, known := range CategoryIDs {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// CategoryPtr returns a pointer to c, convenient for optional filters.
func CategoryPtr(c CategoryID) *CategoryID { return &c }

// UnmarshalJSON rejects category ids outside the known set.
func (c *CategoryID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategoryID(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c CategoryID) String() string { return string(c) }

// Tier is the authority ranking of a source, 1 (official guideline) to 4 (general reference).
type Tier int

const (
	TierGuideline Tier = 1
	TierMedical   Tier = 2
	TierResearch  Tier = 3
	TierReference Tier = 4
)

// TierFromInt validates n as a Tier.
func TierFromInt(n int) (Tier, error) {
	if n < int(TierGuideline) || n > int(TierReference) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTier, n)
	}
	return Tier(n), nil
}

// ParseTier parses a decimal tier number.
func ParseTier(s string) (Tier, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return TierFromInt(n)
}

// TierPtr returns a pointer to t, convenient for optional filters.
func TierPtr(t Tier) *Tier { return &t }

// LabelKey returns the catalog key for the tier's display label.
func (t Tier) LabelKey() string {
	return "tier." + strconv.Itoa(int(t))
}

// UnmarshalJSON rejects tiers outside 1..4.
func (t *Tier) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTier, data)
	}
	parsed, err := TierFromInt(n)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UnmarshalJSON rejects roles other than user and assistant.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Role(s) {
	case RoleUser, RoleAssistant:
		*r = Role(s)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Confidence is the backend's advisory rating of an answer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// UnmarshalJSON rejects values other than high, medium and low.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		*c = Confidence(s)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownConfidence, s)
}
