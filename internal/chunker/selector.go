package chunker

import (
	"fmt"
	"math"
	"sort"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

// StrategyScore is the selector's assessment of one strategy for a document.
type StrategyScore struct {
	Strategy   Strategy `json:"strategy"`
	Applicable bool     `json:"applicable"`
	Quality    float64  `json:"quality"`
	Priority   int      `json:"priority"`
	Combined   float64  `json:"combined"`
	Reason     string   `json:"reason"`
}

// selector ranks strategies against a content profile.
type selector struct {
	cfg *Config
}

// applicable reports whether s suits profile p, with a short rationale.
func (sel *selector) applicable(s Strategy, p doctree.Profile) (bool, string) {
	t := sel.cfg.Thresholds
	switch s {
	case StrategyCode:
		ok := p.CodeRatio >= t.CodeRatio && p.CodeBlockCount >= t.MinCodeBlocks
		return ok, fmt.Sprintf("code ratio %.2f (min %.2f), %d code blocks (min %d)", p.CodeRatio, t.CodeRatio, p.CodeBlockCount, t.MinCodeBlocks)
	case StrategyMixed:
		ok := p.HasMixedContent && p.Complexity >= t.Complexity
		return ok, fmt.Sprintf("mixed content %t, complexity %.2f (min %.2f)", p.HasMixedContent, p.Complexity, t.Complexity)
	case StrategyList:
		byRatio := p.ListRatio >= t.ListRatio
		byCount := p.ListCount >= t.ListCount
		if sel.strongHierarchy(p) {
			return byRatio && byCount, fmt.Sprintf("list ratio %.2f and %d lists required with strong headers", p.ListRatio, p.ListCount)
		}
		return byRatio || byCount, fmt.Sprintf("list ratio %.2f (min %.2f) or %d lists (min %d)", p.ListRatio, t.ListRatio, p.ListCount, t.ListCount)
	case StrategyTable:
		ok := p.TableCount >= t.TableCount || p.TableRatio >= t.TableRatio
		return ok, fmt.Sprintf("%d tables (min %d) or table ratio %.2f (min %.2f)", p.TableCount, t.TableCount, p.TableRatio, t.TableRatio)
	case StrategyStructural:
		return sel.strongHierarchy(p), fmt.Sprintf("%d headers (min %d), depth %d", p.HeaderCount, t.HeaderCount, p.HeaderDepth)
	case StrategySentences:
		return true, "always applicable"
	}
	return false, "unknown strategy"
}

func (sel *selector) strongHierarchy(p doctree.Profile) bool {
	return p.HeaderCount >= sel.cfg.Thresholds.HeaderCount && p.HeaderDepth > 1
}

// quality estimates in [0, 1] how well s fits profile p.
func (sel *selector) quality(s Strategy, p doctree.Profile) float64 {
	var q float64
	switch s {
	case StrategyCode:
		q = 0.7*math.Min(1, p.CodeRatio*2) + 0.3*math.Min(1, float64(p.CodeBlockCount)/5)
	case StrategyMixed:
		q = 0.6*p.Complexity + 0.4*boolScore(p.HasMixedContent)
	case StrategyList:
		q = 0.6*math.Min(1, p.ListRatio/0.6) + 0.2*math.Min(1, float64(p.ListCount)/5) + 0.2*math.Min(1, float64(p.MaxListDepth)/3)
	case StrategyTable:
		q = 0.6*math.Min(1, p.TableRatio*2) + 0.4*math.Min(1, float64(p.TableCount)/5)
	case StrategyStructural:
		q = 0.4*math.Min(1, float64(p.HeaderCount)/10) + 0.4*math.Min(1, float64(p.HeaderDepth)/4) + 0.2*(1-p.CodeRatio)
	case StrategySentences:
		q = 0.2 + 0.3*p.TextRatio
	}
	return math.Max(0, math.Min(1, q))
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// preferred returns the strategy favoured by the document's content density.
func (sel *selector) preferred(p doctree.Profile) Strategy {
	switch p.ContentType {
	case doctree.ContentCodeHeavy:
		return StrategyCode
	case doctree.ContentTableHeavy:
		return StrategyTable
	case doctree.ContentListHeavy:
		return StrategyList
	case doctree.ContentMixed:
		return StrategyMixed
	}
	if sel.strongHierarchy(p) {
		return StrategyStructural
	}
	return StrategySentences
}

// score evaluates every strategy.
func (sel *selector) score(p doctree.Profile) []StrategyScore {
	pref := sel.preferred(p)
	scores := make([]StrategyScore, 0, len(AllStrategies))
	for _, s := range AllStrategies {
		ok, reason := sel.applicable(s, p)
		q := sel.quality(s, p)
		combined := 0.5*(1/float64(s.Priority())) + 0.5*q
		if s == pref {
			combined += sel.cfg.DensityBoost
			reason += "; preferred for " + p.ContentType + " content"
		}
		if !s.autoSelectable() {
			reason += "; override only"
		}
		scores = append(scores, StrategyScore{
			Strategy:   s,
			Applicable: ok,
			Quality:    q,
			Priority:   s.Priority(),
			Combined:   combined,
			Reason:     reason,
		})
	}
	return scores
}

// selectStrategy picks a strategy for p. An explicit override wins without an
// applicability check.
func (sel *selector) selectStrategy(p doctree.Profile) (Strategy, []StrategyScore, error) {
	scores := sel.score(p)
	if s, ok := sel.cfg.override(); ok {
		return s, scores, nil
	}

	var candidates []StrategyScore
	for _, sc := range scores {
		if sc.Applicable && sc.Strategy.autoSelectable() {
			candidates = append(candidates, sc)
		}
	}
	if len(candidates) == 0 {
		return 0, scores, &SelectionError{Mode: sel.cfg.Mode, Message: "no applicable strategy"}
	}

	if sel.cfg.Mode == ModeWeighted {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Combined != candidates[j].Combined {
				return candidates[i].Combined > candidates[j].Combined
			}
			return candidates[i].Priority < candidates[j].Priority
		})
	}
	return candidates[0].Strategy, scores, nil
}
