package domain

import "testing"

func TestFilterEmptyPagesTrimsUnicodeSpace(t *testing.T) {
	pages := FilterEmptyPages([]Page{
		{PageNumber: "1", Content: "\ufeff"},
		{PageNumber: "2", Content: " \u00a0\u2028\t"},
		{PageNumber: "3", Content: "kept"},
	})
	if len(pages) != 1 || pages[0].PageNumber != "3" {
		t.Fatalf("expected only page 3, got %+v", pages)
	}
}

func TestTrimECMASpace(t *testing.T) {
	if got := TrimECMASpace("\ufeff\u3000 text \u200a\n"); got != "text" {
		t.Fatalf("TrimECMASpace() = %q", got)
	}
	if got := TrimECMASpace("\u200bzero width"); got != "\u200bzero width" {
		t.Fatalf("zero width space must be kept, got %q", got)
	}
}
