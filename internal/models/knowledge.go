package models

// Category is a topical bucket of knowledge items.
type Category struct {
	ID     CategoryID `json:"id"`
	Name   string     `json:"name"`
	NameEN string     `json:"name_en"`
	Count  int        `json:"count"`
}

// KnowledgeItem is one stored document.
type KnowledgeItem struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Category  CategoryID `json:"category"`
	Source    string     `json:"source"`
	SourceURL string     `json:"source_url,omitempty"`
	Tier      Tier       `json:"tier"`
}

// ResultMetadata carries the descriptive fields of a SearchResult.
type ResultMetadata struct {
	Title     string     `json:"title"`
	Source    string     `json:"source"`
	SourceURL string     `json:"source_url,omitempty"`
	Category  CategoryID `json:"category"`
	Tier      Tier       `json:"tier"`
}

// SearchResult is a ranked or browsed view of a KnowledgeItem.
type SearchResult struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Metadata       ResultMetadata `json:"metadata"`
	RelevanceScore float64        `json:"relevance_score"`
}

// BrowseScore is the relevance assigned to unranked browse results.
const BrowseScore = 1.0

// AsSearchResult maps a browsed item into the result shape used by search.
func (k KnowledgeItem) AsSearchResult() SearchResult {
	return SearchResult{
		ID:      k.ID,
		Content: k.Content,
		Metadata: ResultMetadata{
			Title:     k.Title,
			Source:    k.Source,
			SourceURL: k.SourceURL,
			Category:  k.Category,
			Tier:      k.Tier,
		},
		RelevanceScore: BrowseScore,
	}
}

// AsKnowledgeItem synthesizes a KnowledgeItem from the summary fields of r.
// It is the fallback when the full item cannot be fetched.
func (r SearchResult) AsKnowledgeItem() KnowledgeItem {
	return KnowledgeItem{
		ID:        r.ID,
		Title:     r.Metadata.Title,
		Content:   r.Content,
		Category:  r.Metadata.Category,
		Source:    r.Metadata.Source,
		SourceURL: r.Metadata.SourceURL,
		Tier:      r.Metadata.Tier,
	}
}

// BrowsePage is the envelope returned by the browse endpoint.
type BrowsePage struct {
	Items    []KnowledgeItem `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// SearchResults maps every item of the page into a SearchResult.
func (p BrowsePage) SearchResults() []SearchResult {
	out := make([]SearchResult, len(p.Items))
	for i, item := range p.Items {
		out[i] = item.AsSearchResult()
	}
	return out
}
