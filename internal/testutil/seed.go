package testutil

import "github.com/starford/healthlib/internal/models"

// DefaultDocs returns a small corpus spanning several categories and tiers.
func DefaultDocs() []Doc {
	return []Doc{
		{
			Item: models.KnowledgeItem{
				ID: "hr-001", Title: "静息心率", Content: "成人静息心率通常为每分钟 60-100 次。",
				Category: models.CategoryHeartRate, Source: "AHA", SourceURL: "https://www.heart.org/rhr", Tier: models.TierGuideline,
			},
			TitleEN:   "Resting heart rate",
			ContentEN: "A normal resting heart rate for adults ranges from 60 to 100 beats per minute.",
		},
		{
			Item: models.KnowledgeItem{
				ID: "hr-002", Title: "心率区间", Content: "最大心率的百分比划分训练心率区间。",
				Category: models.CategoryHeartRate, Source: "ACSM", Tier: models.TierMedical,
			},
			TitleEN:   "Heart rate zones",
			ContentEN: "Training heart rate zones are defined as percentages of maximum heart rate.",
		},
		{
			Item: models.KnowledgeItem{
				ID: "ex-001", Title: "有氧运动强度", Content: "中等强度运动对应最大心率的 64-76%。",
				Category: models.CategoryExercise, Source: "WHO", SourceURL: "https://www.who.int/pa", Tier: models.TierGuideline,
			},
			TitleEN:   "Aerobic exercise intensity",
			ContentEN: "Moderate intensity exercise corresponds to heart rate zones of 64-76% of maximum heart rate.",
		},
		{
			Item: models.KnowledgeItem{
				ID: "sl-001", Title: "成人睡眠时长", Content: "成年人每晚需要 7-9 小时睡眠。",
				Category: models.CategorySleep, Source: "AASM", SourceURL: "https://aasm.org/sleep", Tier: models.TierGuideline,
			},
			TitleEN:   "Adult sleep duration",
			ContentEN: "Adults need 7 to 9 hours of sleep per night.",
		},
		{
			Item: models.KnowledgeItem{
				ID: "hrv-001", Title: "心率变异性基础", Content: "HRV 反映自主神经系统的平衡。",
				Category: models.CategoryHRV, Source: "Journal of Physiology", Tier: models.TierResearch,
			},
			TitleEN:   "HRV basics",
			ContentEN: "Heart rate variability reflects autonomic nervous system balance.",
		},
		{
			Item: models.KnowledgeItem{
				ID: "st-001", Title: "运动缓解压力", Content: "规律运动有助于降低压力水平。",
				Category: models.CategoryStress, Source: "Health blog", Tier: models.TierReference,
			},
			TitleEN:   "Exercise for stress relief",
			ContentEN: "Regular exercise helps lower perceived stress levels.",
		},
	}
}

// DefaultSuggestions mirrors the backend's starter questions.
func DefaultSuggestions() []models.Suggestion {
	return []models.Suggestion{
		{Question: "什么是正常的心率范围？", Category: models.CategoryHeartRate},
		{Question: "如何提高心率变异性(HRV)？", Category: models.CategoryHRV},
		{Question: "成年人每天需要多少睡眠？", Category: models.CategorySleep},
		{Question: "每天应该走多少步？", Category: models.CategoryExercise},
		{Question: "如何通过运动缓解压力？", Category: models.CategoryStress},
	}
}

// DefaultWebResults is what the fake web search returns for any query.
func DefaultWebResults() []models.WebSearchResult {
	return []models.WebSearchResult{
		{Title: "WHO guidelines on physical activity", URL: "https://who.int/x", Snippet: "Adults should do at least 150 minutes...", Source: "who.int"},
		{Title: "AHA target heart rates", URL: "https://www.heart.org/target", Snippet: "Target heart rate zones...", Source: "www.heart.org"},
	}
}
