package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

const defaultPageRange = "all"

func buildTranscriptionPrompt(att *domain.Attachment, pageRange string) domain.Prompt {
	scope := "Return all text from the image."
	if att.IsPDF() {
		scope = fmt.Sprintf(
			"The document is a multi-page PDF. ONLY transcribe content for the following pages/range: **%s**.",
			normalizePageRange(pageRange),
		)
	}

	text := "Transcribe the handwriting or text from the document. " + scope + `
Your output must be a single JSON object that strictly follows this structure:
{"transcription": [ {"page": "1", "content": "..."} ] }
The 'page' value should be the page number (as a string, starting at 1). The 'content' should be the full transcribed text for that page/image.`

	return domain.Prompt{
		Text:       text,
		Mode:       domain.ResponseModeJSON,
		Attachment: att,
	}
}

// normalizePageRange trims and lowercases the range. The value is otherwise
// passed to the model as-is.
func normalizePageRange(pageRange string) string {
	r := strings.ToLower(strings.TrimSpace(pageRange))
	if r == "" {
		return defaultPageRange
	}
	return r
}

func buildProofreadingPrompt(pages []domain.Page) domain.Prompt {
	text := `You are a meticulous proofreader. Review the following text, which contains content from multiple pages delimited by "[PAGE X]" and "---". Correct all grammatical errors, spelling mistakes, and typos.
Your output MUST be a single JSON object that strictly follows this structure, retaining the page numbers and corrected content for ONLY the pages provided:
{"proofreading": [ {"page": "1", "content": "..."} ] }
The 'page' value must be the original page number (as a string). The 'content' should be the full corrected text for that page.

Text to proofread:
"` + proofreadingBody(pages) + `"`

	return domain.Prompt{
		Text: text,
		Mode: domain.ResponseModeJSON,
	}
}

// proofreadingBody renders pages as "[PAGE n]\ncontent" blocks separated by
// a horizontal rule.
func proofreadingBody(pages []domain.Page) string {
	blocks := make([]string, 0, len(pages))
	for _, p := range pages {
		blocks = append(blocks, fmt.Sprintf("[PAGE %s]\n%s", p.PageNumber, p.Content))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func buildResourcePrompt(kind domain.ResourceKind, fullText string) domain.Prompt {
	var text string
	switch kind {
	case domain.ResourceResearch:
		text = `Using live search, analyze the main topic(s) of the ENTIRE combined document below and generate a numbered list of 5 **recent (published within the last 5 years) and currently accessible** research paper titles or links (e.g., Google Scholar, institutional repository links). Return the output in Markdown format using links ([Title](URL)) for the list items. Text: "` + fullText + `"`
	default:
		text = `Using live search, analyze the main topic(s) of the ENTIRE combined document below and generate a numbered list of 5 **highly relevant and currently accessible** study material links (educational websites, videos, articles). Prioritize links from reliable, established sources (e.g., academic sites, major educational platforms). Return the output in Markdown format using links ([Link Text](URL)) for the list items. Text: "` + fullText + `"`
	}

	return domain.Prompt{
		Text:        text,
		Mode:        domain.ResponseModeMarkdown,
		NeedsSearch: true,
	}
}
