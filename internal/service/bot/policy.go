package bot

import (
	"strings"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/internal/service/responder"
)

// Policy decides whether a detected message gets a reply. Rules run in a
// fixed order and the first matching rule decides.
type Policy struct {
	blacklist map[string]struct{}
	whitelist map[string]struct{}
	keywords  []string
	aiEnabled bool
	quota     int
}

func NewPolicy(blacklist, whitelist, keywords []string, aiEnabled bool, quota int) *Policy {
	return &Policy{
		blacklist: toSet(blacklist),
		whitelist: toSet(whitelist),
		keywords:  keywords,
		aiEnabled: aiEnabled,
		quota:     quota,
	}
}

// Evaluate applies, in order: blacklist, whitelist, daily quota, then
// keyword or AI trigger. A whitelisted sender skips the trigger rule but not
// the quota. A non-empty whitelist denies everyone not on it.
func (p *Policy) Evaluate(sender, message string, repliedToday int) core.Decision {
	sender = strings.TrimSpace(sender)

	if _, ok := p.blacklist[sender]; ok {
		return core.Deny(core.DenyBlacklisted)
	}

	whitelisted := false
	if len(p.whitelist) > 0 {
		if _, whitelisted = p.whitelist[sender]; !whitelisted {
			return core.Deny(core.DenyNotWhitelisted)
		}
	}

	if repliedToday >= p.quota {
		return core.Deny(core.DenyQuotaExceeded)
	}

	if whitelisted || p.aiEnabled || responder.MatchesAny(message, p.keywords) {
		return core.Allow()
	}
	return core.Deny(core.DenyNoTrigger)
}

func (p *Policy) Quota() int { return p.quota }

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}
