package mcpserver

// DraftFormatURI identifies the draft format resource.
const DraftFormatURI = "healthlib://draft-format"

// DraftFormatContract describes the Markdown form of a document awaiting
// review, as returned by preview_content.
const DraftFormatContract = `# HealthLib Draft Format

A draft is a web page that has been machine-cleaned into a structured document.
Drafts are never authoritative: a human reviewer edits and approves each one
before it enters the knowledge base. Agents can produce drafts but cannot import them.

## Structure

` + "```" + `markdown
---
title: Target heart rates              # REQUIRED
category: heart_rate                   # REQUIRED, see categories below
tier: 2                                # REQUIRED, 1-4, see tiers below
source_name: American Heart Association
url: https://www.heart.org/target      # page the draft was extracted from; fixed
summary: One or two sentence summary.
---

Cleaned body text in Markdown.
` + "```" + `

## Categories

| id | meaning |
|---|---|
| ` + "`general`" + ` | anything that fits no other category |
| ` + "`heart_rate`" + ` | resting, maximum and target heart rate |
| ` + "`hrv`" + ` | heart rate variability |
| ` + "`sleep`" + ` | sleep duration, quality and hygiene |
| ` + "`exercise`" + ` | physical activity and training |
| ` + "`stress`" + ` | stress and recovery |

## Tiers

1. **Guideline**: official guidelines from health authorities (WHO, AHA, ACSM).
2. **Medical**: medical institutions and clinical references.
3. **Research**: peer-reviewed studies.
4. **Reference**: general reference material.

## Rules

1. The frontmatter fences must be the first thing in the file.
2. Unknown categories and tiers outside 1-4 are rejected.
3. The body is everything after the closing fence, kept byte for byte.
4. ` + "`url`" + ` cannot be edited; changing it in the file has no effect.
`
