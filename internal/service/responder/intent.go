package responder

import (
	"strings"
	"unicode"

	"github.com/sandevgo/replybot/internal/core"
)

// Checked in this order; the first table with a hit decides.
var intentKeywords = []struct {
	intent   core.Intent
	keywords []string
}{
	{core.IntentComplaint, []string{"投诉", "差评", "退款", "退货", "不满意", "太差", "垃圾", "骗子", "生气", "complaint", "refund", "terrible", "awful", "angry", "scam"}},
	{core.IntentInquiry, []string{"请问", "多少钱", "价格", "怎么", "如何", "什么", "哪里", "能不能", "可以吗", "?", "？", "how", "what", "when", "where", "why", "price", "cost"}},
	{core.IntentGreeting, []string{"你好", "您好", "在吗", "在不在", "早上好", "晚上好", "嗨", "哈喽", "hello", "hi", "hey", "morning"}},
}

var defaultFallbacks = map[string]string{
	string(core.IntentGreeting):  "你好!我现在有点忙,稍后回复你。",
	string(core.IntentInquiry):   "收到你的问题了,我稍后详细回复你。",
	string(core.IntentComplaint): "非常抱歉给你带来不好的体验,我会尽快处理。",
	string(core.IntentOther):     "消息已收到,稍后回复。",
	core.FallbackDefault:         "我现在不在,稍后回复你。",
}

// ClassifyIntent assigns a coarse intent from keyword hits. ASCII keywords
// must match whole words, others match as substrings.
func ClassifyIntent(message string) core.Intent {
	lower := strings.ToLower(message)
	words := wordSet(lower)

	for _, table := range intentKeywords {
		for _, kw := range table.keywords {
			if matchKeyword(lower, words, kw) {
				return table.intent
			}
		}
	}
	return core.IntentOther
}

// MatchesAny reports whether message hits one of keywords.
func MatchesAny(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	words := wordSet(lower)
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && matchKeyword(lower, words, kw) {
			return true
		}
	}
	return false
}

func matchKeyword(lower string, words map[string]struct{}, kw string) bool {
	if isASCIIWord(kw) {
		_, ok := words[kw]
		return ok
	}
	return strings.Contains(lower, kw)
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return s != ""
}

func wordSet(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	}) {
		words[w] = struct{}{}
	}
	return words
}

// FallbackTable resolves canned replies per intent. Configured entries
// override the built-ins; an empty configured value disables that entry.
type FallbackTable map[string]string

func NewFallbackTable(overrides map[string]string) FallbackTable {
	t := make(FallbackTable, len(defaultFallbacks)+len(overrides))
	for k, v := range defaultFallbacks {
		t[k] = v
	}
	for k, v := range overrides {
		t[k] = v
	}
	return t
}

// Lookup returns the intent's reply, then the default entry.
func (t FallbackTable) Lookup(intent core.Intent) (string, bool) {
	if v, ok := t[string(intent)]; ok {
		return v, v != ""
	}
	v := t[core.FallbackDefault]
	return v, v != ""
}
