package proposal

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/models"
)

// FallbackExtractor tries primary and answers with the heuristic result on any
// primary failure. It never returns an error.
type FallbackExtractor struct {
	primary Extractor
	logger  *zap.Logger
}

// NewFallbackExtractor wraps primary. A nil primary means heuristic only.
func NewFallbackExtractor(primary Extractor, logger *zap.Logger) *FallbackExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackExtractor{primary: primary, logger: logger}
}

func (f *FallbackExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	if f.primary != nil {
		out, err := f.primary.Extract(ctx, text)
		if err == nil && out != nil {
			return out, nil
		}
		f.logger.Warn("model extraction failed, using heuristic parser", zap.Error(err))
	}
	return extractHeuristic(text), nil
}

// FallbackComparator ranks with primary and falls back to the heuristic ranking.
type FallbackComparator struct {
	primary   Comparator
	heuristic *HeuristicComparator
	logger    *zap.Logger
}

func NewFallbackComparator(primary Comparator, logger *zap.Logger) *FallbackComparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackComparator{primary: primary, heuristic: NewHeuristicComparator(), logger: logger}
}

func (f *FallbackComparator) Compare(ctx context.Context, rfp *models.RFP, candidates []Candidate) ([]Ranked, error) {
	if len(candidates) == 0 {
		return []Ranked{}, nil
	}
	if f.primary != nil {
		ranked, err := f.primary.Compare(ctx, rfp, candidates)
		if err == nil {
			return ranked, nil
		}
		f.logger.Warn("model comparison failed, using heuristic ranking", zap.Error(err))
	}
	return f.heuristic.Compare(ctx, rfp, candidates)
}
