package proposal

import (
	"time"

	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/ai"
)

// Options tunes the model-backed extractor and comparator.
type Options struct {
	MaxLogLength int
	CacheTTL     time.Duration
}

// Build wires the extractor and comparator used by the pipeline. With a nil
// generator both run their heuristic paths only.
func Build(generator ai.Generator, logger *zap.Logger, opts Options) (Extractor, Comparator) {
	if generator == nil {
		return NewFallbackExtractor(nil, logger), NewFallbackComparator(nil, logger)
	}

	extractor := NewCachedExtractor(NewModelExtractor(generator, logger, opts.MaxLogLength), opts.CacheTTL)
	comparator := NewModelComparator(generator, logger, opts.MaxLogLength)

	return NewFallbackExtractor(extractor, logger), NewFallbackComparator(comparator, logger)
}
