package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

// parsePageEnvelope reads {"<field>": [{page, content}, ...]} from model
// output and drops empty pages. Any other shape is a format error.
func parsePageEnvelope(raw string, field string, stage domain.Stage) ([]domain.Page, error) {
	formatErr := &domain.MessageError{
		Kind:    domain.ErrFormat,
		Message: fmt.Sprintf("API response was not in the expected structured JSON format for %s.", stage),
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &envelope); err != nil {
		return nil, formatErr
	}
	list, ok := envelope[field]
	if !ok {
		return nil, formatErr
	}
	list = bytes.TrimSpace(list)
	if len(list) == 0 || list[0] != '[' {
		return nil, formatErr
	}

	var items []*domain.Page
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, formatErr
	}
	pages := make([]domain.Page, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		pages = append(pages, *item)
	}
	return domain.FilterEmptyPages(pages), nil
}

// stripCodeFence removes a surrounding ``` or ```json fence that some
// models add even in JSON mode.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
