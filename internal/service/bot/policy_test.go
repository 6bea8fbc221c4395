package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sandevgo/replybot/internal/core"
)

func TestPolicy_Evaluate(t *testing.T) {
	keywords := []string{"在吗", "hello"}

	tests := []struct {
		name    string
		policy  *Policy
		sender  string
		message string
		replied int
		want    core.Decision
	}{
		{
			name:    "blacklisted",
			policy:  NewPolicy([]string{"spamBot"}, nil, keywords, true, 10),
			sender:  "spamBot",
			message: "hello",
			want:    core.Deny(core.DenyBlacklisted),
		},
		{
			name:    "blacklist beats whitelist",
			policy:  NewPolicy([]string{"alice"}, []string{"alice"}, keywords, true, 10),
			sender:  "alice",
			message: "hello",
			want:    core.Deny(core.DenyBlacklisted),
		},
		{
			name:    "not on whitelist",
			policy:  NewPolicy(nil, []string{"alice"}, keywords, true, 10),
			sender:  "bob",
			message: "hello",
			want:    core.Deny(core.DenyNotWhitelisted),
		},
		{
			name:    "whitelisted skips trigger",
			policy:  NewPolicy(nil, []string{"alice"}, keywords, false, 10),
			sender:  "alice",
			message: "random chatter",
			want:    core.Allow(),
		},
		{
			name:    "whitelisted still bound by quota",
			policy:  NewPolicy(nil, []string{"alice"}, keywords, true, 2),
			sender:  "alice",
			message: "hello",
			replied: 2,
			want:    core.Deny(core.DenyQuotaExceeded),
		},
		{
			name:    "quota reached",
			policy:  NewPolicy(nil, nil, keywords, true, 2),
			sender:  "carol",
			message: "hello",
			replied: 2,
			want:    core.Deny(core.DenyQuotaExceeded),
		},
		{
			name:    "ai enabled allows anything",
			policy:  NewPolicy(nil, nil, keywords, true, 2),
			sender:  "carol",
			message: "random chatter",
			replied: 1,
			want:    core.Allow(),
		},
		{
			name:    "keyword trigger without ai",
			policy:  NewPolicy(nil, nil, keywords, false, 2),
			sender:  "carol",
			message: "老板在吗?",
			want:    core.Allow(),
		},
		{
			name:    "no trigger without ai",
			policy:  NewPolicy(nil, nil, keywords, false, 2),
			sender:  "carol",
			message: "random chatter",
			want:    core.Deny(core.DenyNoTrigger),
		},
		{
			name:    "zero quota",
			policy:  NewPolicy(nil, nil, keywords, true, 0),
			sender:  "carol",
			message: "hello",
			want:    core.Deny(core.DenyQuotaExceeded),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Evaluate(tt.sender, tt.message, tt.replied))
		})
	}
}
