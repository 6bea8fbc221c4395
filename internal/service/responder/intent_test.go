package responder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sandevgo/replybot/internal/core"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		message string
		want    core.Intent
	}{
		{"在吗", core.IntentGreeting},
		{"Hello there", core.IntentGreeting},
		{"this is fine", core.IntentOther},
		{"请问这个多少钱", core.IntentInquiry},
		{"你好,请问价格?", core.IntentInquiry},
		{"What time do you open", core.IntentInquiry},
		{"我要投诉,太差了", core.IntentComplaint},
		{"hi, I want a refund", core.IntentComplaint},
		{"好的", core.IntentOther},
		{"", core.IntentOther},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.message))
		})
	}
}

func TestMatchesAny(t *testing.T) {
	keywords := []string{"在吗", "Hello", " "}

	assert.True(t, MatchesAny("老板在吗", keywords))
	assert.True(t, MatchesAny("HELLO!", keywords))
	assert.False(t, MatchesAny("othello", keywords), "ascii keywords match whole words")
	assert.False(t, MatchesAny("anything", nil))
}

func TestFallbackTable(t *testing.T) {
	table := NewFallbackTable(map[string]string{
		"greeting": "hey",
		"other":    "",
	})

	got, ok := table.Lookup(core.IntentGreeting)
	assert.True(t, ok)
	assert.Equal(t, "hey", got)

	got, ok = table.Lookup(core.IntentComplaint)
	assert.True(t, ok)
	assert.Equal(t, defaultFallbacks["complaint"], got, "built-in kept")

	_, ok = table.Lookup(core.IntentOther)
	assert.False(t, ok, "explicitly disabled")

	got, ok = NewFallbackTable(nil).Lookup(core.Intent("unknown"))
	assert.True(t, ok)
	assert.Equal(t, defaultFallbacks["default"], got)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("Hello,  World!", "alice", false)
	assert.Equal(t, a, Fingerprint("hello, world", "bob", false))
	assert.NotEqual(t, a, Fingerprint("hello world", "alice", false))
	assert.NotEqual(t,
		Fingerprint("hello", "alice", true),
		Fingerprint("hello", "bob", true),
	)
	assert.Len(t, a, 64)
}
