package proposal

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/rfp-intake/internal/models"
)

const (
	heuristicBase = 40
	heuristicStep = 20
	heuristicCap  = 95
)

var (
	totalRe         = regexp.MustCompile(`(?i)total\s*[:\-\s]*\$?([0-9,]+\.?[0-9]*)`)
	totalSuffixRe   = regexp.MustCompile(`(?i)\$([0-9,]+\.?[0-9]*)\s*total`)
	lineItemRe      = regexp.MustCompile(`([A-Za-z0-9][A-Za-z0-9 \t\-]*?)[ \t]*[:\-][ \t]*\$([0-9,]+(?:\.[0-9]+)?)`)
	termsRe         = regexp.MustCompile(`(?i)(\bnet\s*\d{1,2}\b|warranty.*?\d+\s*years?)`)
	thousandsString = strings.NewReplacer(",", "", "$", "")
)

// HeuristicExtractor pulls totals, priced lines and payment or warranty terms
// out of the text with regular expressions. It never fails.
type HeuristicExtractor struct{}

func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

func (HeuristicExtractor) Extract(_ context.Context, text string) (*Extraction, error) {
	return extractHeuristic(text), nil
}

func extractHeuristic(text string) *Extraction {
	out := &Extraction{
		Total:     findTotal(text),
		LineItems: findLineItems(text),
		Terms:     findTerms(text),
		Method:    MethodHeuristic,
	}

	score := heuristicBase
	if out.Total != nil {
		score += heuristicStep
	}
	if len(out.LineItems) >= 2 {
		score += heuristicStep
	}
	if out.Terms != nil {
		score += heuristicStep
	}
	out.Score = min(score, heuristicCap)
	out.Feedback = heuristicFeedback(out)
	out.Payload = payloadOf(out)

	return out
}

func findTotal(text string) *float64 {
	m := totalRe.FindStringSubmatch(text)
	if m == nil {
		m = totalSuffixRe.FindStringSubmatch(text)
	}
	if m == nil {
		return nil
	}
	return parseAmount(m[1])
}

func findLineItems(text string) []models.LineItem {
	items := []models.LineItem{}
	for _, m := range lineItemRe.FindAllStringSubmatch(text, -1) {
		amount := parseAmount(m[2])
		if amount == nil {
			continue
		}
		items = append(items, models.LineItem{
			Description: strings.TrimSpace(m[1]),
			Amount:      *amount,
		})
	}
	return items
}

func findTerms(text string) *string {
	m := termsRe.FindString(text)
	if m == "" {
		return nil
	}
	return &m
}

// parseAmount reads a money figure with thousands separators. Zero and
// unparsable figures count as absent.
func parseAmount(raw string) *float64 {
	cleaned := thousandsString.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}

func heuristicFeedback(e *Extraction) string {
	terms := "missing terms"
	if e.Terms != nil {
		terms = "includes terms"
	}
	total := "not specified"
	if e.Total != nil {
		total = "$" + strconv.FormatFloat(*e.Total, 'f', -1, 64)
	}
	return fmt.Sprintf("Proposal has %d items, %s, total: %s", len(e.LineItems), terms, total)
}

func payloadOf(e *Extraction) map[string]any {
	payload := map[string]any{
		"total":      nil,
		"line_items": e.LineItems,
		"terms":      nil,
		"score":      e.Score,
		"feedback":   e.Feedback,
		"method":     e.Method,
	}
	if e.Total != nil {
		payload["total"] = *e.Total
	}
	if e.Terms != nil {
		payload["terms"] = *e.Terms
	}
	return payload
}
