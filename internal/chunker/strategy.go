package chunker

import (
	"fmt"
	"strings"
)

// Strategy identifies one of the splitting algorithms. The set is closed;
// the numeric value is the selection priority (lower is preferred).
type Strategy int

const (
	StrategyCode Strategy = iota + 1
	StrategyMixed
	StrategyList
	StrategyTable
	StrategyStructural
	StrategySentences
)

// StrategyAuto is the Config.Strategy value that enables automatic selection.
const StrategyAuto = "auto"

var strategyNames = [...]string{
	StrategyCode:       "code",
	StrategyMixed:      "mixed",
	StrategyList:       "list",
	StrategyTable:      "table",
	StrategyStructural: "structural",
	StrategySentences:  "sentences",
}

// AllStrategies lists every strategy in priority order.
var AllStrategies = []Strategy{
	StrategyCode,
	StrategyMixed,
	StrategyList,
	StrategyTable,
	StrategyStructural,
	StrategySentences,
}

func (s Strategy) String() string {
	if s < StrategyCode || s > StrategySentences {
		return fmt.Sprintf("strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// Priority returns the selection priority; lower runs first in strict mode.
func (s Strategy) Priority() int {
	return int(s)
}

// autoSelectable reports whether s takes part in automatic selection. The list
// strategy is only reachable through an explicit override because it tends to
// drop surrounding prose into poorly sized chunks on mixed documents.
func (s Strategy) autoSelectable() bool {
	return s != StrategyList
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStrategy maps a strategy name to its value.
func ParseStrategy(name string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range AllStrategies {
		if strategyNames[s] == n {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}
