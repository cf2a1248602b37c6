package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/logger"
	"github.com/spigell/rfp-intake/internal/models"
	"github.com/spigell/rfp-intake/internal/proposal"
)

// Email is an inbound message as delivered by the mail provider.
type Email struct {
	From    string `form:"from" json:"from"`
	To      string `form:"to" json:"to"`
	Subject string `form:"subject" json:"subject"`
	Text    string `form:"text" json:"text"`
	HTML    string `form:"html" json:"html"`
}

// Submission is a proposal entered by an operator on a vendor's behalf.
// VendorID takes precedence over VendorEmail.
type Submission struct {
	VendorID    int64  `json:"vendorId"`
	VendorEmail string `json:"vendorEmail"`
	RFPID       int64  `json:"rfpId"`
	Body        string `json:"emailBody"`
}

// RFPRef identifies the RFP a response was filed under.
type RFPRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Result is the outcome of one intake.
type Result struct {
	RFP    RFPRef `json:"rfp"`
	Method string `json:"method"`
	Outcome
}

// Success reports whether at least one vendor's proposal was stored.
func (r *Result) Success() bool {
	return r != nil && len(r.Recorded) > 0
}

// Message summarises the result for humans.
func (r *Result) Message() string {
	switch {
	case !r.Success():
		return ErrNothingRecorded.Error()
	case len(r.Failures) > 0:
		return fmt.Sprintf("Proposal recorded for %d of %d vendor(s)", len(r.Recorded), len(r.Recorded)+len(r.Failures))
	default:
		return fmt.Sprintf("Proposal received and recorded for %d vendor(s)", len(r.Recorded))
	}
}

// Comparison is a ranked view of every proposal filed under one RFP.
type Comparison struct {
	RFP       *models.RFP       `json:"rfp"`
	Proposals []proposal.Ranked `json:"proposals"`
}

// Options tunes the pipeline.
type Options struct {
	MinBodyLength int
}

// Service runs inbound proposals through vendor and RFP resolution,
// extraction and recording.
type Service struct {
	store      Store
	vendors    *VendorResolver
	rfps       *RFPMatcher
	recorder   *Recorder
	extractor  proposal.Extractor
	comparator proposal.Comparator
	minBody    int
	logger     *zap.Logger
}

func NewService(store Store, extractor proposal.Extractor, comparator proposal.Comparator, log *zap.Logger, opts Options) *Service {
	log = logger.WithFields(log)
	if extractor == nil {
		extractor = proposal.NewFallbackExtractor(nil, log)
	}
	if comparator == nil {
		comparator = proposal.NewFallbackComparator(nil, log)
	}
	minBody := opts.MinBodyLength
	if minBody <= 0 {
		minBody = DefaultMinBodyLength
	}
	return &Service{
		store:      store,
		vendors:    NewVendorResolver(store, log),
		rfps:       NewRFPMatcher(store),
		recorder:   NewRecorder(store, log),
		extractor:  extractor,
		comparator: comparator,
		minBody:    minBody,
		logger:     log,
	}
}

// ProcessEmail runs a signature-verified webhook delivery through the pipeline.
func (s *Service) ProcessEmail(ctx context.Context, requestID string, email Email) (*Result, error) {
	log := s.logger.With(logger.IntakeFields(requestID, 0, 0)...)

	if strings.TrimSpace(email.From) == "" || (strings.TrimSpace(email.Text) == "" && strings.TrimSpace(email.HTML) == "") {
		return nil, validationError(ErrMissingFields, "from and one of text or html are required")
	}

	address, err := SenderAddress(email.From)
	if err != nil {
		return nil, err
	}

	log.Info("email received",
		zap.String("from", logger.MaskEmail(address)),
		zap.String("subject", logger.TruncateForLog(email.Subject, 120)),
	)

	body, err := NormalizeBody(email.Text, email.HTML, s.minBody)
	if err != nil {
		return nil, err
	}

	vendors, step, err := s.vendors.Resolve(ctx, address, body)
	if err != nil {
		log.Warn("vendor resolution failed", zap.String("from", logger.MaskEmail(address)), zap.Error(err))
		return nil, err
	}
	log.Info("vendors resolved", zap.Int("vendors", step.Left), zap.Int("registered_under_address", step.Initial))

	rfp, via, err := s.rfps.Match(ctx, body, email.Subject)
	if err != nil {
		log.Warn("rfp resolution failed", zap.String("via", via), zap.Error(err))
		return nil, err
	}
	log.Info("rfp matched", zap.Int64(logger.FieldRFPID, rfp.ID), zap.String("via", via))

	return s.record(ctx, log, rfp, vendors, body)
}

// ProcessManual records an operator-entered proposal.
func (s *Service) ProcessManual(ctx context.Context, requestID string, sub Submission) (*Result, error) {
	log := s.logger.With(logger.IntakeFields(requestID, sub.RFPID, sub.VendorID)...)

	body := strings.TrimSpace(sub.Body)
	if sub.RFPID <= 0 || body == "" || (sub.VendorID <= 0 && strings.TrimSpace(sub.VendorEmail) == "") {
		return nil, validationError(ErrMissingFields, "provide {vendorId, rfpId, emailBody} or {vendorEmail, rfpId, emailBody}")
	}

	var vendors []models.Vendor
	if sub.VendorID > 0 {
		vendor, err := s.vendors.ByID(ctx, sub.VendorID)
		if err != nil {
			return nil, err
		}
		vendors = []models.Vendor{*vendor}
	} else {
		address, err := SenderAddress(sub.VendorEmail)
		if err != nil {
			return nil, err
		}
		resolved, _, err := s.vendors.Resolve(ctx, address, body)
		if err != nil {
			return nil, err
		}
		vendors = resolved
	}

	rfp, err := s.rfps.ByID(ctx, sub.RFPID)
	if err != nil {
		return nil, err
	}

	log.Info("manual submission accepted", zap.String("via", MatchExplicit), zap.Int("vendors", len(vendors)))

	return s.record(ctx, log, rfp, vendors, body)
}

func (s *Service) record(ctx context.Context, log *zap.Logger, rfp *models.RFP, vendors []models.Vendor, body string) (*Result, error) {
	ext, err := s.extractor.Extract(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("extract proposal: %w", err)
	}
	log.Info("proposal extracted", zap.String("method", ext.Method), zap.Int("score", ext.Score))

	outcome := s.recorder.Record(ctx, rfp, vendors, ext, body)
	result := &Result{
		RFP:     RFPRef{ID: rfp.ID, Title: rfp.Title},
		Method:  ext.Method,
		Outcome: outcome,
	}

	if !result.Success() {
		return result, &Error{Kind: KindPersistence, Err: ErrNothingRecorded, Details: failureSummary(outcome.Failures)}
	}
	return result, nil
}

// Parse extracts a proposal without storing it.
func (s *Service) Parse(ctx context.Context, text string) (*proposal.Extraction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError(ErrMissingFields, "text is required")
	}
	return s.extractor.Extract(ctx, text)
}

// Compare ranks every stored proposal of an RFP, best first.
func (s *Service) Compare(ctx context.Context, rfpID int64) (*Comparison, error) {
	rfp, err := s.rfps.ByID(ctx, rfpID)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.ProposalsByRFP(ctx, rfpID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, persistenceError("list proposals", err)
	}

	candidates := make([]proposal.Candidate, 0, len(stored))
	for _, p := range stored {
		candidates = append(candidates, proposal.CandidateFromStored(p))
	}

	ranked, err := s.comparator.Compare(ctx, rfp, candidates)
	if err != nil {
		return nil, fmt.Errorf("compare proposals: %w", err)
	}

	return &Comparison{RFP: rfp, Proposals: ranked}, nil
}

func failureSummary(failures []Failure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("vendor %d: %s", f.VendorID, f.Error))
	}
	return strings.Join(parts, "; ")
}
