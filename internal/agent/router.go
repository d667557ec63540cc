package agent

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Router selects the responding profile for a conversation.
type Router struct {
	repo *Repo
}

func NewRouter(repo *Repo) *Router {
	return &Router{repo: repo}
}

// Select scans active profiles in creation order and returns the first whose
// routing rules match the conversation's channel or detected language. When
// nothing matches it falls back to the default profile, provisioning it on
// first use.
func (r *Router) Select(ctx context.Context, tenant, channel, language string) (*AgentProfile, error) {
	profiles, err := r.repo.ListActive(ctx, tenant)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		rules := profiles[i].RoutingRules
		if contains(rules.Channels, channel) || contains(rules.Languages, language) {
			return &profiles[i], nil
		}
	}

	log.Debug().
		Str("channel", channel).
		Str("language", language).
		Msg("no routing rule matched, using default agent")
	return r.repo.EnsureDefault(ctx, tenant, channel)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
