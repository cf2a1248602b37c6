package proposal

import (
	"context"

	"github.com/spigell/rfp-intake/internal/models"
)

const (
	MethodModel     = "model"
	MethodHeuristic = "heuristic"
)

// Extraction is the structured form of a vendor's free-text proposal.
type Extraction struct {
	Total     *float64          `json:"total"`
	LineItems []models.LineItem `json:"line_items"`
	Terms     *string           `json:"terms"`
	Score     int               `json:"score"`
	Feedback  string            `json:"feedback"`
	Method    string            `json:"method"`
	// Payload is persisted as the proposal's JSON document.
	Payload map[string]any `json:"-"`
}

// Extractor turns proposal text into an Extraction.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Extraction, error)
}

// Candidate is a stored proposal offered for ranking.
type Candidate struct {
	ProposalID int64             `json:"proposalId"`
	VendorID   int64             `json:"vendorId"`
	VendorName string            `json:"vendorName"`
	Total      *float64          `json:"total"`
	LineItems  []models.LineItem `json:"lineItems"`
	Terms      *string           `json:"terms,omitempty"`
	Feedback   string            `json:"feedback,omitempty"`
}

// Ranked is a Candidate with its comparative score. Reason is only filled by
// the model comparator.
type Ranked struct {
	Candidate
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
	Method string  `json:"method"`
}

// Comparator ranks the proposals of one RFP, best first.
type Comparator interface {
	Compare(ctx context.Context, rfp *models.RFP, candidates []Candidate) ([]Ranked, error)
}

// CandidateFromStored adapts a stored proposal row for ranking.
func CandidateFromStored(p models.VendorProposal) Candidate {
	return Candidate{
		ProposalID: p.ID,
		VendorID:   p.VendorID,
		VendorName: p.VendorName,
		Total:      p.Total,
		LineItems:  p.LineItems,
		Terms:      p.Terms,
		Feedback:   p.Feedback,
	}
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
