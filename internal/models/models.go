package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// AuditStatusResponseReceived tags email_sends rows written by the intake pipeline.
const AuditStatusResponseReceived = "response_received"

// Vendor is a supplier that can be invited to RFPs. Email is not unique: one
// mailbox may front several vendor records.
type Vendor struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Contact string   `json:"contact,omitempty"`
	Rating  *float64 `json:"rating,omitempty"`
}

// RFPItem is a single requested line of an RFP.
type RFPItem struct {
	Name string  `json:"name"`
	Qty  float64 `json:"qty"`
}

// RFP is a buyer's request for proposals.
type RFP struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Budget       *float64  `json:"budget,omitempty"`
	DeliveryDays *int      `json:"deliveryDays,omitempty"`
	Items        []RFPItem `json:"items"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LineItem is one priced line of a vendor proposal.
type LineItem struct {
	Description string  `json:"description" mapstructure:"description"`
	Amount      float64 `json:"amount" mapstructure:"amount"`
}

// Proposal is one recorded vendor response to an RFP. Rows are append-only.
type Proposal struct {
	ID        int64          `json:"id"`
	RFPID     int64          `json:"rfpId"`
	VendorID  int64          `json:"vendorId"`
	JSON      map[string]any `json:"proposalJson,omitempty"`
	Total     *float64       `json:"total"`
	LineItems []LineItem     `json:"lineItems"`
	Terms     *string        `json:"terms"`
	Score     int            `json:"score"`
	Feedback  string         `json:"feedback"`
	RawText   string         `json:"rawText"`
	CreatedAt time.Time      `json:"createdAt"`
}

// VendorProposal is a stored proposal joined with its vendor, as used for comparisons.
type VendorProposal struct {
	Proposal
	VendorName  string `json:"vendorName"`
	VendorEmail string `json:"vendorEmail"`
}
