package chunker

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid or contradictory setting. It is returned at
// construction time, before any document is processed.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// SelectionError means no strategy could be selected for a document.
type SelectionError struct {
	Mode    SelectionMode
	Message string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("strategy selection (%s): %s", e.Mode, e.Message)
}

// StrategyError wraps a failure inside a single strategy run.
type StrategyError struct {
	Strategy Strategy
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

var errNoChunks = errors.New("produced no chunks")

// IsConfigError checks if err is a configuration error.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
