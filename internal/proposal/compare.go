package proposal

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/ai"
	"github.com/spigell/rfp-intake/internal/logger"
	"github.com/spigell/rfp-intake/internal/models"
)

const noReason = "No reason provided"

//go:embed prompts/compare.md
var comparePrompt string

// HeuristicComparator scores 50 for a stated total, 30 for any priced line and
// up to 20 for how close the total is to the RFP budget.
type HeuristicComparator struct{}

func NewHeuristicComparator() *HeuristicComparator {
	return &HeuristicComparator{}
}

func (HeuristicComparator) Compare(_ context.Context, rfp *models.RFP, candidates []Candidate) ([]Ranked, error) {
	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, Ranked{
			Candidate: c,
			Score:     clampScore(heuristicRank(rfp, c)),
			Method:    MethodHeuristic,
		})
	}
	sortRanked(ranked)
	return ranked, nil
}

func heuristicRank(rfp *models.RFP, c Candidate) float64 {
	score := 0.0
	if c.Total != nil {
		score += 50
	}
	if len(c.LineItems) > 0 {
		score += 30
	}
	return score + budgetCloseness(rfp, c.Total)
}

// budgetCloseness is 20 for a total exactly on budget, decreasing linearly to
// 0 at a 100% deviation either way.
func budgetCloseness(rfp *models.RFP, total *float64) float64 {
	if rfp == nil || rfp.Budget == nil || *rfp.Budget <= 0 || total == nil {
		return 0
	}
	budget := *rfp.Budget
	return math.Max(0, 20-20*math.Abs(*total-budget)/budget)
}

// ModelComparator asks a language model to rank the proposals.
type ModelComparator struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewModelComparator(generator ai.Generator, logger *zap.Logger, maxLogLength int) *ModelComparator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelComparator{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

type indexedCandidate struct {
	Index int `json:"index"`
	Candidate
}

type modelScore struct {
	Index  *int     `mapstructure:"index"`
	Score  *float64 `mapstructure:"score"`
	Reason string   `mapstructure:"reason"`
}

func (m *ModelComparator) Compare(ctx context.Context, rfp *models.RFP, candidates []Candidate) ([]Ranked, error) {
	if m.generator == nil {
		return nil, errors.New("ai generator is not configured")
	}
	if rfp == nil {
		return nil, errors.New("rfp is required")
	}

	message, err := buildCompareMessage(rfp, candidates)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("proposal comparison request",
		zap.Int64(logger.FieldRFPID, rfp.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", logger.TruncateForLog(message, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, comparePrompt, message)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("proposal comparison response",
		zap.Int64(logger.FieldRFPID, rfp.ID),
		zap.String("response_preview", logger.TruncateForLog(raw, m.maxLogLen)),
	)

	var data []any
	if err := json.Unmarshal([]byte(ai.ExtractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse model ranking: %w", err)
	}

	var scores []modelScore
	if err := weakDecode(data, &scores); err != nil {
		return nil, fmt.Errorf("decode model ranking: %w", err)
	}

	byIndex := make(map[int]modelScore, len(scores))
	for _, s := range scores {
		if s.Index == nil {
			continue
		}
		if _, seen := byIndex[*s.Index]; !seen {
			byIndex[*s.Index] = s
		}
	}

	ranked := make([]Ranked, 0, len(candidates))
	for i, c := range candidates {
		r := Ranked{Candidate: c, Score: float64(defaultModelScore), Reason: noReason, Method: MethodModel}
		if s, ok := byIndex[i]; ok {
			if s.Score != nil && !math.IsNaN(*s.Score) {
				r.Score = clampScore(*s.Score)
			}
			if reason := strings.TrimSpace(s.Reason); reason != "" {
				r.Reason = reason
			}
		}
		ranked = append(ranked, r)
	}

	sortRanked(ranked)
	return ranked, nil
}

func buildCompareMessage(rfp *models.RFP, candidates []Candidate) (string, error) {
	budget := "Not specified"
	if rfp.Budget != nil {
		budget = strconv.FormatFloat(*rfp.Budget, 'f', -1, 64)
	}

	indexed := make([]indexedCandidate, 0, len(candidates))
	for i, c := range candidates {
		indexed = append(indexed, indexedCandidate{Index: i, Candidate: c})
	}

	proposals, err := json.MarshalIndent(indexed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal proposals: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "RFP Title: %s\n", rfp.Title)
	fmt.Fprintf(&b, "RFP Budget: %s\n", budget)
	fmt.Fprintf(&b, "RFP Item Count: %d\n\n", len(rfp.Items))
	b.WriteString("PROPOSALS:\n")
	b.Write(proposals)
	return b.String(), nil
}

func sortRanked(ranked []Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
}
