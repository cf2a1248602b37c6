package intake

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/logger"
	"github.com/spigell/rfp-intake/internal/models"
	"github.com/spigell/rfp-intake/internal/proposal"
)

// Recorded is a proposal stored for one vendor.
type Recorded struct {
	ProposalID int64  `json:"proposalId"`
	VendorID   int64  `json:"vendorId"`
	VendorName string `json:"vendorName"`
	Score      int    `json:"score"`
}

// Failure is a vendor whose proposal could not be stored.
type Failure struct {
	VendorID   int64  `json:"vendorId"`
	VendorName string `json:"vendorName"`
	Error      string `json:"error"`
}

// Outcome is the per-vendor result of recording one inbound proposal.
type Outcome struct {
	Recorded []Recorded `json:"proposals"`
	Failures []Failure  `json:"failures"`
}

// Recorder writes one proposal and audit row per vendor. Vendors are
// independent: a failed write is reported and the rest still proceed.
type Recorder struct {
	store  ProposalStore
	logger *zap.Logger
}

func NewRecorder(store ProposalStore, log *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.WithFields(log)}
}

func (r *Recorder) Record(ctx context.Context, rfp *models.RFP, vendors []models.Vendor, ext *proposal.Extraction, rawText string) Outcome {
	out := Outcome{Recorded: []Recorded{}, Failures: []Failure{}}

	for _, vendor := range vendors {
		log := r.logger.With(zap.Int64(logger.FieldRFPID, rfp.ID), zap.Int64(logger.FieldVendorID, vendor.ID))

		stored, err := r.store.RecordResponse(ctx, newProposal(rfp.ID, vendor.ID, ext, rawText))
		if err != nil {
			log.Error("recording proposal failed", zap.String("vendor_name", vendor.Name), zap.Error(err))
			out.Failures = append(out.Failures, Failure{
				VendorID:   vendor.ID,
				VendorName: vendor.Name,
				Error:      err.Error(),
			})
			continue
		}

		log.Info("proposal recorded",
			zap.Int64("proposal_id", stored.ID),
			zap.Int("score", stored.Score),
			zap.String("method", ext.Method),
		)
		out.Recorded = append(out.Recorded, Recorded{
			ProposalID: stored.ID,
			VendorID:   vendor.ID,
			VendorName: vendor.Name,
			Score:      stored.Score,
		})
	}

	return out
}

func newProposal(rfpID, vendorID int64, ext *proposal.Extraction, rawText string) *models.Proposal {
	items := ext.LineItems
	if items == nil {
		items = []models.LineItem{}
	}
	return &models.Proposal{
		RFPID:     rfpID,
		VendorID:  vendorID,
		JSON:      ext.Payload,
		Total:     ext.Total,
		LineItems: items,
		Terms:     ext.Terms,
		Score:     ext.Score,
		Feedback:  ext.Feedback,
		RawText:   rawText,
	}
}
