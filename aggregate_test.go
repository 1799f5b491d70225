package pagemill

import (
	"errors"
	"testing"
)

func TestOrderPages(t *testing.T) {
	pages := []PageResult{
		{Number: 3, Text: "c"},
		{Number: 1, Text: "a"},
		{Number: 2, Text: "b"},
	}
	orderPages(pages)
	for i, want := range []string{"a", "b", "c"} {
		if pages[i].Number != i+1 {
			t.Errorf("pages[%d].Number = %d, want %d", i, pages[i].Number, i+1)
		}
		if pages[i].Text != want {
			t.Errorf("pages[%d].Text = %q, want %q", i, pages[i].Text, want)
		}
	}
}

func TestCombinedText(t *testing.T) {
	pages := []PageResult{
		{Number: 1, Text: "Hello"},
		{Number: 2, Text: "World"},
	}
	got := combinedText(pages)
	want := "--- Page 1 ---\nHello\n--- Page 2 ---\nWorld"
	if got != want {
		t.Errorf("combinedText = %q, want %q", got, want)
	}
}

func TestCombinedTextSkipsFailedPages(t *testing.T) {
	pages := []PageResult{
		{Number: 1, Text: "first"},
		{Number: 2, Err: errors.New("unreadable")},
		{Number: 3, Text: "third"},
	}
	got := combinedText(pages)
	want := "--- Page 1 ---\nfirst\n--- Page 3 ---\nthird"
	if got != want {
		t.Errorf("combinedText = %q, want failed page omitted", got)
	}
}

func TestCombinedTextEmpty(t *testing.T) {
	if got := combinedText(nil); got != "" {
		t.Errorf("combinedText(nil) = %q, want empty", got)
	}
}

func TestClassify(t *testing.T) {
	failed := errors.New("bad page")
	tests := []struct {
		name  string
		pages []PageResult
		want  Status
	}{
		{"all pages ok", []PageResult{{Number: 1}, {Number: 2}}, StatusSuccess},
		{"some pages failed", []PageResult{{Number: 1}, {Number: 2, Err: failed}}, StatusPartial},
		{"all pages failed", []PageResult{{Number: 1, Err: failed}, {Number: 2, Err: failed}}, StatusFailed},
		{"single failure", []PageResult{{Number: 1, Err: failed}}, StatusFailed},
		{"no pages", nil, StatusSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.pages); got != tt.want {
				t.Errorf("classify = %q, want %q", got, tt.want)
			}
		})
	}
}
