package intake

import (
	"context"
	"errors"
	"testing"
)

func TestCleanSubject(t *testing.T) {
	tests := map[string]string{
		"RE: RFP - Office Chairs":          "Office Chairs",
		"Fwd: Re: RFP Request: Laptops":    "Laptops",
		"re[2]: rfp: Desks":                "Desks",
		"Office Chairs Procurement":        "Office Chairs Procurement",
		"  ":                               "",
		"Re: RFP_ID: 12 our quote":         "RFP_ID: 12 our quote",
		"AW: Quote for Reception Printers": "Quote for Reception Printers",
	}
	for in, want := range tests {
		if got := CleanSubject(in); got != want {
			t.Fatalf("CleanSubject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRFPMatcher(t *testing.T) {
	matcher := NewRFPMatcher(seededStore())
	ctx := context.Background()

	tests := []struct {
		name    string
		body    string
		subject string
		wantID  int64
		wantVia string
	}{
		{name: "body marker wins over subject", body: "RFP_ID: 2\nTotal: $5", subject: "Re: Office Chairs", wantID: 2, wantVia: MatchBodyMarker},
		{name: "subject marker", body: "Total: $5", subject: "Re: RFP_ID: 1", wantID: 1, wantVia: MatchSubjectMarker},
		{name: "subject contains title", body: "Total: $5", subject: "Quote for Laptops, 20 units", wantID: 2, wantVia: MatchSubject},
		{name: "title contains subject", body: "Total: $5", subject: "RE: RFP - Office Chairs", wantID: 1, wantVia: MatchSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rfp, via, err := matcher.Match(ctx, tt.body, tt.subject)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rfp.ID != tt.wantID || via != tt.wantVia {
				t.Fatalf("expected rfp %d via %s, got %d via %s", tt.wantID, tt.wantVia, rfp.ID, via)
			}
		})
	}
}

func TestRFPMarkerStaysOnOneLine(t *testing.T) {
	for _, body := range []string{"RFP ID\n\n5 desks", "RFP_ID:\n12"} {
		if id, ok := RFPMarker(body); ok {
			t.Fatalf("RFPMarker(%q) = %d, want no marker", body, id)
		}
	}
	if id, ok := RFPMarker("\tRFP ID 4\n"); !ok || id != 4 {
		t.Fatalf("expected marker 4, got %d, %v", id, ok)
	}
}

func TestRFPMatcherExplicitMarkerIsFinal(t *testing.T) {
	matcher := NewRFPMatcher(seededStore())

	_, _, err := matcher.Match(context.Background(), "RFP_ID: 99\nTotal: $5", "Re: Office Chairs Procurement")
	if !errors.Is(err, ErrRFPNotFound) || KindOf(err) != KindNotFound {
		t.Fatalf("expected RFP not found without subject fallback, got %v", err)
	}
}

func TestRFPMatcherUnresolved(t *testing.T) {
	matcher := NewRFPMatcher(seededStore())

	for _, subject := range []string{"Re: our quote", "", "Re: "} {
		_, _, err := matcher.Match(context.Background(), "Total: $5", subject)
		var ierr *Error
		if !errors.As(err, &ierr) || !errors.Is(err, ErrRFPUnresolved) {
			t.Fatalf("subject %q: expected unresolved error, got %v", subject, err)
		}
		if ierr.Hint != HintRFPMarker {
			t.Fatalf("expected marker hint, got %q", ierr.Hint)
		}
	}

	_, _, err := NewRFPMatcher(&brokenStore{}).Match(context.Background(), "", "Laptops")
	if KindOf(err) != KindPersistence {
		t.Fatalf("expected persistence error, got %v", err)
	}
}
