package responder

import (
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/replybot/internal/core"
)

// TokenCounter estimates prompt size.
type TokenCounter interface {
	Count(text string) int
}

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		// cl100k_base is fetched on first use; offline hosts fall back to
		// the estimate below.
		tk, _ = tiktoken.GetEncoding("cl100k_base")
	})
	return tk
}

// TiktokenCounter counts with cl100k_base when available.
type TiktokenCounter struct{}

func (TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := getTokenizer(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// EstimateCounter never touches the network.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int { return EstimateTokens(text) }

// EstimateTokens approximates one token per CJK rune and one per four
// bytes of other text.
func EstimateTokens(text string) int {
	cjk, other := 0, 0
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			cjk++
		} else {
			other += utf8.RuneLen(r)
		}
	}
	return cjk + (other+3)/4
}

// perMessageOverhead covers role and separator tokens of the chat format.
const perMessageOverhead = 4

// TrimToBudget drops the oldest history turns until system, history and
// the new user turn fit maxTokens. The system prompt and the user turn are
// always kept; maxTokens <= 0 disables trimming.
func TrimToBudget(counter TokenCounter, system, user core.Message, history []core.Message, maxTokens int) []core.Message {
	if maxTokens <= 0 {
		return history
	}

	cost := func(m core.Message) int { return counter.Count(m.Content) + perMessageOverhead }

	used := cost(user)
	if system.Content != "" {
		used += cost(system)
	}

	// Walk newest to oldest and keep what fits.
	keep := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		c := cost(history[i])
		if used+c > maxTokens {
			break
		}
		used += c
		keep = i
	}
	if keep == len(history) {
		return nil
	}

	trimmed := history[keep:]
	// Never open the window on an assistant turn.
	for len(trimmed) > 0 && trimmed[0].Role == core.RoleAssistant {
		trimmed = trimmed[1:]
	}
	return trimmed
}
