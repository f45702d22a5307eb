package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PageNumber is the page label chosen by the model. Models sometimes emit
// it as a JSON number, so both forms decode.
type PageNumber string

func (p *PageNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PageNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("page number must be a string or number: %w", err)
	}
	*p = PageNumber(n.String())
	return nil
}

type Page struct {
	PageNumber PageNumber `json:"page"`
	Content    string     `json:"content"`
}

// FilterEmptyPages drops pages whose content is empty or whitespace only.
// Order is preserved.
func FilterEmptyPages(pages []Page) []Page {
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		if TrimECMASpace(p.Content) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// JoinContent concatenates page contents with a blank line between pages.
func JoinContent(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n\n")
}

// IsECMASpace reports whether r is whitespace or a line terminator as
// models and browsers trim it, including U+FEFF.
func IsECMASpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}

func TrimECMASpace(s string) string {
	return strings.TrimFunc(s, IsECMASpace)
}
