package chunk

import (
	"errors"
	"fmt"
)

// Strategy names resolvable by the factory.
const (
	StrategyFixed        = "fixed"
	StrategySemantic     = "semantic"
	StrategyHierarchical = "hierarchical"
	StrategyAdaptive     = "adaptive"
)

var errEmbedderRequired = errors.New("chunk: semantic strategy requires an embedder")

// New resolves a strategy name to a constructed instance. Unknown names and
// invalid settings are configuration errors.
func New(name string, settings Settings, deps Deps) (Strategy, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	switch name {
	case StrategyFixed, "":
		return newFixedStrategy(settings), nil
	case StrategySemantic:
		if deps.Embedder == nil {
			return nil, errEmbedderRequired
		}
		return newSemanticStrategy(settings, deps.Embedder), nil
	case StrategyHierarchical:
		return newHierarchicalStrategy(settings), nil
	case StrategyAdaptive:
		return newAdaptiveStrategy(settings), nil
	default:
		return nil, fmt.Errorf("chunk: unknown strategy %q", name)
	}
}

func validateSettings(settings Settings) error {
	if settings.Size <= 0 {
		return errors.New("chunk: size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap >= settings.Size {
		return fmt.Errorf("chunk: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	return nil
}
