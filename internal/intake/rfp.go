package intake

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/rfp-intake/internal/models"
)

const (
	MatchBodyMarker    = "body_marker"
	MatchSubjectMarker = "subject_marker"
	MatchSubject       = "subject"
	MatchExplicit      = "explicit"
)

var (
	rfpMarkerRe       = regexp.MustCompile(`(?im)^[ \t]*RFP[_ \t]*ID[ \t:]*(\d+)`)
	replyPrefixRe     = regexp.MustCompile(`(?i)^\s*(re|fwd?|aw)\s*(\[\d+\])?\s*:\s*`)
	outboundSubjectRe = regexp.MustCompile(`(?i)^\s*rfp\s*(request\s*:|-|:)\s*`)
)

// RFPMarker returns the id given on an "RFP_ID: <n>" line, if any.
func RFPMarker(s string) (int64, bool) {
	return marker(rfpMarkerRe, s)
}

// CleanSubject drops reply and forward prefixes and the prefix outbound RFP
// mail is sent with, leaving the part that should name the RFP.
func CleanSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		next := replyPrefixRe.ReplaceAllString(s, "")
		next = outboundSubjectRe.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == s {
			return s
		}
		s = next
	}
}

// RFPMatcher decides which RFP an inbound message answers.
type RFPMatcher struct {
	store RFPStore
}

func NewRFPMatcher(store RFPStore) *RFPMatcher {
	return &RFPMatcher{store: store}
}

// Match resolves the RFP from an RFP_ID marker in the body, then one in the
// subject, then by title containment against the cleaned subject. An explicit
// marker that names an unknown RFP is final.
func (m *RFPMatcher) Match(ctx context.Context, body, subject string) (*models.RFP, string, error) {
	if id, ok := RFPMarker(body); ok {
		rfp, err := m.ByID(ctx, id)
		return rfp, MatchBodyMarker, err
	}

	cleaned := CleanSubject(subject)
	if id, ok := RFPMarker(cleaned); ok {
		rfp, err := m.ByID(ctx, id)
		return rfp, MatchSubjectMarker, err
	}

	if cleaned == "" {
		return nil, MatchSubject, notFoundError(ErrRFPUnresolved, HintRFPMarker)
	}

	rfp, err := m.store.RFPBySubject(ctx, cleaned)
	if errors.Is(err, models.ErrNotFound) {
		return nil, MatchSubject, notFoundError(ErrRFPUnresolved, HintRFPMarker)
	}
	if err != nil {
		return nil, MatchSubject, persistenceError("find rfp by subject", err)
	}

	return rfp, MatchSubject, nil
}

// ByID loads an explicitly referenced RFP.
func (m *RFPMatcher) ByID(ctx context.Context, id int64) (*models.RFP, error) {
	rfp, err := m.store.RFPByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		e := notFoundError(ErrRFPNotFound, HintRFPMarker)
		e.Details = fmt.Sprintf("no RFP with id %d", id)
		return nil, e
	}
	if err != nil {
		return nil, persistenceError("find rfp", err)
	}
	return rfp, nil
}
