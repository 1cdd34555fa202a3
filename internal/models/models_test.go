package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategoryID(t *testing.T) {
	t.Run("known values", func(t *testing.T) {
		for _, c := range CategoryIDs {
			got, err := ParseCategoryID(string(c))
			require.NoError(t, err)
			assert.Equal(t, c, got)
		}
	})

	t.Run("unknown value fails explicitly", func(t *testing.T) {
		_, err := ParseCategoryID("nutrition")
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})

	t.Run("json decoding is strict", func(t *testing.T) {
		var item KnowledgeItem
		err := json.Unmarshal([]byte(`{"id":"a","category":"diet","tier":1}`), &item)
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})
}

func TestTier(t *testing.T) {
	t.Run("range", func(t *testing.T) {
		for n := 1; n <= 4; n++ {
			tier, err := TierFromInt(n)
			require.NoError(t, err)
			assert.Equal(t, Tier(n), tier)
		}
		_, err := TierFromInt(0)
		assert.ErrorIs(t, err, ErrInvalidTier)
		_, err = TierFromInt(5)
		assert.ErrorIs(t, err, ErrInvalidTier)
	})

	t.Run("parse", func(t *testing.T) {
		tier, err := ParseTier(" 3 ")
		require.NoError(t, err)
		assert.Equal(t, TierResearch, tier)
		_, err = ParseTier("three")
		assert.ErrorIs(t, err, ErrInvalidTier)
	})

	t.Run("json decoding is strict", func(t *testing.T) {
		var tier Tier
		assert.ErrorIs(t, json.Unmarshal([]byte(`7`), &tier), ErrInvalidTier)
		require.NoError(t, json.Unmarshal([]byte(`2`), &tier))
		assert.Equal(t, TierMedical, tier)
	})

	t.Run("label key", func(t *testing.T) {
		assert.Equal(t, "tier.1", TierGuideline.LabelKey())
	})
}

func TestParseLang(t *testing.T) {
	lang, err := ParseLang("")
	require.NoError(t, err)
	assert.Equal(t, LangZH, lang)

	lang, err = ParseLang("EN")
	require.NoError(t, err)
	assert.Equal(t, LangEN, lang)
	assert.Equal(t, LangZH, lang.Other())

	_, err = ParseLang("fr")
	assert.ErrorIs(t, err, ErrUnknownLang)
}

func TestRoleAndConfidenceDecoding(t *testing.T) {
	var resp ChatResponse
	err := json.Unmarshal([]byte(`{"conversation_id":"c","message":{"role":"assistant","content":"hi"},"sources":[],"confidence":"medium"}`), &resp)
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, resp.Message.Role)
	assert.Equal(t, ConfidenceMedium, resp.Confidence)

	err = json.Unmarshal([]byte(`{"message":{"role":"system","content":"x"},"confidence":"low"}`), &resp)
	assert.ErrorIs(t, err, ErrUnknownRole)

	err = json.Unmarshal([]byte(`{"message":{"role":"user","content":"x"},"confidence":"certain"}`), &resp)
	assert.ErrorIs(t, err, ErrUnknownConfidence)
}

func TestBrowseMappingPreservesFields(t *testing.T) {
	item := KnowledgeItem{
		ID:        "who-hr-1",
		Title:     "Resting heart rate",
		Content:   "60-100 bpm",
		Category:  CategoryHeartRate,
		Source:    "WHO",
		SourceURL: "https://who.int/hr",
		Tier:      TierGuideline,
	}

	res := item.AsSearchResult()
	assert.Equal(t, item.ID, res.ID)
	assert.Equal(t, item.Content, res.Content)
	assert.Equal(t, item.Title, res.Metadata.Title)
	assert.Equal(t, item.Source, res.Metadata.Source)
	assert.Equal(t, item.SourceURL, res.Metadata.SourceURL)
	assert.Equal(t, item.Category, res.Metadata.Category)
	assert.Equal(t, item.Tier, res.Metadata.Tier)
	assert.Equal(t, 1.0, res.RelevanceScore)

	assert.Equal(t, item, res.AsKnowledgeItem())
}

func TestBrowsePageSearchResults(t *testing.T) {
	page := BrowsePage{Items: []KnowledgeItem{
		{ID: "a", Title: "A", Tier: TierGuideline},
		{ID: "b", Title: "B", Tier: TierMedical},
	}}
	got := page.SearchResults()
	require.Len(t, got, 2)
	for i, item := range page.Items {
		assert.Equal(t, item.AsSearchResult(), got[i])
	}
	assert.Empty(t, BrowsePage{}.SearchResults())
}

func TestContentPreviewValidate(t *testing.T) {
	p := ContentPreview{
		Title:    "Sleep duration",
		Category: CategorySleep,
		Content:  "7-9 hours",
		Tier:     TierGuideline,
		URL:      "https://who.int/sleep",
	}
	require.NoError(t, p.Validate())

	bad := p
	bad.Title = ""
	assert.Error(t, bad.Validate())

	bad = p
	bad.Tier = 9
	assert.Error(t, bad.Validate())

	bad = p
	bad.Category = "diet"
	assert.Error(t, bad.Validate())
}
