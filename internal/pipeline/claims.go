package pipeline

import (
	"strings"

	"github.com/baibhavbaidya/researchmind-backend/internal/index"
)

// SimilarityThreshold is the token Jaccard similarity at which two claims are
// treated as the same assertion.
const SimilarityThreshold = 0.5

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "cannot": true, "without": true,
	"isn't": true, "aren't": true, "wasn't": true, "weren't": true, "doesn't": true, "don't": true,
	"didn't": true, "won't": true, "can't": true, "false": true, "neither": true, "nor": true,
}

// sourcedClaim is a claim extracted from one source.
type sourcedClaim struct {
	label string
	extractedClaim
}

type claimGroup struct {
	text     string
	tokens   map[string]struct{}
	sources  []string
	seen     map[string]bool
	disputed bool
	negated  map[bool]bool
}

func claimTokens(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, t := range index.Tokenize(text) {
		if negations[t] {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

func isNegated(text string) bool {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"()")
		w = strings.ReplaceAll(w, "’", "'")
		if negations[w] || strings.HasSuffix(w, "n't") {
			return true
		}
	}
	return false
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// classifyClaims groups claims from different sources by token overlap and
// assigns each group a status. A group backed by at least threshold distinct
// sources is disputed when any member disputes it or members disagree on
// negation, and verified otherwise. Smaller groups are unresolved. Group order
// follows first appearance.
func classifyClaims(claims []sourcedClaim, threshold int) []Claim {
	if threshold < 1 {
		threshold = 1
	}
	var groups []*claimGroup
	for _, c := range claims {
		tokens := claimTokens(c.text)
		if len(tokens) == 0 {
			continue
		}
		var g *claimGroup
		for _, cand := range groups {
			if jaccard(cand.tokens, tokens) >= SimilarityThreshold {
				g = cand
				break
			}
		}
		if g == nil {
			g = &claimGroup{text: c.text, tokens: tokens, seen: map[string]bool{}, negated: map[bool]bool{}}
			groups = append(groups, g)
		}
		if !g.seen[c.label] {
			g.seen[c.label] = true
			g.sources = append(g.sources, c.label)
		}
		g.disputed = g.disputed || c.disputed
		g.negated[isNegated(c.text)] = true
	}

	out := make([]Claim, 0, len(groups))
	for _, g := range groups {
		status := ClaimUnresolved
		if len(g.sources) >= threshold {
			status = ClaimVerified
			if g.disputed || len(g.negated) > 1 {
				status = ClaimDisputed
			}
		}
		out = append(out, Claim{Text: g.text, SupportingSources: g.sources, Status: status})
	}
	return out
}
