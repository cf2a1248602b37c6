package proposal

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/spigell/rfp-intake/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestBudgetCloseness(t *testing.T) {
	rfp := &models.RFP{Budget: ptr(10000.0)}

	if got := budgetCloseness(rfp, ptr(12000.0)); math.Abs(got-16) > 1e-9 {
		t.Fatalf("expected 16, got %v", got)
	}
	if got := budgetCloseness(rfp, ptr(10000.0)); got != 20 {
		t.Fatalf("expected 20 on budget, got %v", got)
	}
	if got := budgetCloseness(rfp, ptr(25000.0)); got != 0 {
		t.Fatalf("expected 0 far over budget, got %v", got)
	}
	if got := budgetCloseness(rfp, nil); got != 0 {
		t.Fatalf("expected 0 without total, got %v", got)
	}
	if got := budgetCloseness(&models.RFP{}, ptr(5.0)); got != 0 {
		t.Fatalf("expected 0 without budget, got %v", got)
	}
}

func TestHeuristicComparator(t *testing.T) {
	rfp := &models.RFP{ID: 1, Budget: ptr(10000.0)}
	candidates := []Candidate{
		{ProposalID: 1, VendorName: "no total"},
		{ProposalID: 2, VendorName: "over budget", Total: ptr(12000.0)},
		{ProposalID: 3, VendorName: "on budget with lines", Total: ptr(10000.0), LineItems: []models.LineItem{{Description: "a", Amount: 10000}}},
		{ProposalID: 4, VendorName: "also nothing"},
	}

	ranked, err := NewHeuristicComparator().Compare(context.Background(), rfp, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []int64{3, 2, 1, 4}
	wantScores := []float64{100, 66, 0, 0}
	for i, r := range ranked {
		if r.ProposalID != wantOrder[i] {
			t.Fatalf("position %d: expected proposal %d, got %d", i, wantOrder[i], r.ProposalID)
		}
		if math.Abs(r.Score-wantScores[i]) > 1e-9 {
			t.Fatalf("proposal %d: expected score %v, got %v", r.ProposalID, wantScores[i], r.Score)
		}
		if r.Reason != "" || r.Method != MethodHeuristic {
			t.Fatalf("heuristic ranking must not carry reasons: %+v", r)
		}
	}
}

func TestModelComparator(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" + `[{"index": 1, "score": 91, "reason": "best value"}, {"index": "0", "score": "120"}]` + "\n```"}
	rfp := &models.RFP{ID: 3, Title: "Office Chairs", Budget: ptr(5000.0), Items: []models.RFPItem{{Name: "chair", Qty: 50}}}
	candidates := []Candidate{{ProposalID: 10}, {ProposalID: 11}, {ProposalID: 12}}

	ranked, err := NewModelComparator(stub, nil, 0).Compare(context.Background(), rfp, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked proposals, got %d", len(ranked))
	}
	if ranked[0].ProposalID != 10 || ranked[0].Score != 100 || ranked[0].Reason != noReason {
		t.Fatalf("unexpected first entry: %+v", ranked[0])
	}
	if ranked[1].ProposalID != 11 || ranked[1].Score != 91 || ranked[1].Reason != "best value" {
		t.Fatalf("unexpected second entry: %+v", ranked[1])
	}
	if ranked[2].ProposalID != 12 || ranked[2].Score != 50 || ranked[2].Reason != noReason {
		t.Fatalf("missing entries must default to 50: %+v", ranked[2])
	}

	for _, want := range []string{"RFP Budget: 5000", "RFP Item Count: 1", `"index": 2`} {
		if !strings.Contains(stub.lastMessage, want) {
			t.Fatalf("expected %q in prompt, got:\n%s", want, stub.lastMessage)
		}
	}
}

func TestFallbackComparator(t *testing.T) {
	rfp := &models.RFP{ID: 1}
	candidates := []Candidate{{ProposalID: 1}, {ProposalID: 2, Total: ptr(10.0)}}

	for name, primary := range map[string]Comparator{
		"model error":  NewModelComparator(&stubGenerator{err: errors.New("unavailable")}, nil, 0),
		"invalid json": NewModelComparator(&stubGenerator{response: "no ranking today"}, nil, 0),
		"no model":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			ranked, err := NewFallbackComparator(primary, nil).Compare(context.Background(), rfp, candidates)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ranked[0].ProposalID != 2 || ranked[0].Method != MethodHeuristic {
				t.Fatalf("expected heuristic ranking, got %+v", ranked)
			}
		})
	}

	stub := &stubGenerator{}
	ranked, err := NewFallbackComparator(NewModelComparator(stub, nil, 0), nil).Compare(context.Background(), rfp, nil)
	if err != nil || len(ranked) != 0 || stub.calls != 0 {
		t.Fatalf("empty input must not call the model: %v %v %d", ranked, err, stub.calls)
	}
}
