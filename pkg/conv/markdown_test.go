package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownToPlainText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contains    []string
		notContains []string
		exact       string
	}{
		{
			name:  "empty input",
			input: "   ",
			exact: "",
		},
		{
			name:  "plain text unchanged",
			input: "Hello world",
			exact: "Hello world",
		},
		{
			name:        "bold markers removed",
			input:       "**Sure**, I can help",
			contains:    []string{"Sure", "I can help"},
			notContains: []string{"**", "<strong>"},
		},
		{
			name:        "heading flattened",
			input:       "# Price list",
			contains:    []string{"Price list"},
			notContains: []string{"#", "<h1>"},
		},
		{
			name:        "script dropped",
			input:       "hi <script>alert('x')</script>",
			contains:    []string{"hi"},
			notContains: []string{"script", "alert"},
		},
		{
			name:        "inline code kept as text",
			input:       "run `make build` first",
			contains:    []string{"make build"},
			notContains: []string{"`", "<code>"},
		},
		{
			name:     "cjk preserved",
			input:    "您好! 很高兴为您服务",
			contains: []string{"您好", "很高兴为您服务"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkdownToPlainText(tt.input)
			if tt.exact != "" || len(tt.contains) == 0 {
				assert.Equal(t, tt.exact, got)
			}
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, got, s)
			}
		})
	}
}
