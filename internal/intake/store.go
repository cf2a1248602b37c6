package intake

import (
	"context"

	"github.com/spigell/rfp-intake/internal/models"
)

// VendorStore looks vendors up. Missing rows are reported as models.ErrNotFound.
type VendorStore interface {
	VendorsByEmail(ctx context.Context, email string) ([]models.Vendor, error)
	VendorByID(ctx context.Context, id int64) (*models.Vendor, error)
}

// RFPStore looks RFPs up. Missing rows are reported as models.ErrNotFound.
type RFPStore interface {
	RFPByID(ctx context.Context, id int64) (*models.RFP, error)
	// RFPBySubject returns the newest RFP whose title contains subject or is
	// contained in it, compared case-insensitively.
	RFPBySubject(ctx context.Context, subject string) (*models.RFP, error)
}

// ProposalStore persists and lists proposals.
type ProposalStore interface {
	// RecordResponse stores the proposal together with its response_received
	// audit row as one unit and returns the stored proposal.
	RecordResponse(ctx context.Context, p *models.Proposal) (*models.Proposal, error)
	ProposalsByRFP(ctx context.Context, rfpID int64) ([]models.VendorProposal, error)
}

// Store is everything the pipeline needs from persistence.
type Store interface {
	VendorStore
	RFPStore
	ProposalStore
}
