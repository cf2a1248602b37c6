package intake

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spigell/rfp-intake/internal/models"
)

// auditRow mirrors the email_sends row written alongside each proposal.
type auditRow struct {
	RFPID    int64
	VendorID int64
	Status   string
}

type memStore struct {
	mu         sync.Mutex
	vendors    []models.Vendor
	rfps       []models.RFP
	proposals  []models.Proposal
	audits     []auditRow
	failVendor map[int64]error
	nextID     int64
}

func newMemStore() *memStore {
	return &memStore{failVendor: map[int64]error{}}
}

func (m *memStore) VendorsByEmail(_ context.Context, email string) ([]models.Vendor, error) {
	var out []models.Vendor
	for _, v := range m.vendors {
		if strings.EqualFold(v.Email, email) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) VendorByID(_ context.Context, id int64) (*models.Vendor, error) {
	for _, v := range m.vendors {
		if v.ID == id {
			v := v
			return &v, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) RFPByID(_ context.Context, id int64) (*models.RFP, error) {
	for _, r := range m.rfps {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) RFPBySubject(_ context.Context, subject string) (*models.RFP, error) {
	subject = strings.ToLower(subject)
	var best *models.RFP
	for i := range m.rfps {
		title := strings.ToLower(m.rfps[i].Title)
		if title == "" || !(strings.Contains(title, subject) || strings.Contains(subject, title)) {
			continue
		}
		if best == nil || m.rfps[i].CreatedAt.After(best.CreatedAt) {
			best = &m.rfps[i]
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	r := *best
	return &r, nil
}

func (m *memStore) RecordResponse(_ context.Context, p *models.Proposal) (*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failVendor[p.VendorID]; err != nil {
		return nil, err
	}
	m.nextID++
	stored := *p
	stored.ID = m.nextID
	stored.CreatedAt = time.Now()
	m.proposals = append(m.proposals, stored)
	m.audits = append(m.audits, auditRow{
		RFPID:    p.RFPID,
		VendorID: p.VendorID,
		Status:   models.AuditStatusResponseReceived,
	})
	return &stored, nil
}

func (m *memStore) ProposalsByRFP(_ context.Context, rfpID int64) ([]models.VendorProposal, error) {
	var out []models.VendorProposal
	for _, p := range m.proposals {
		if p.RFPID != rfpID {
			continue
		}
		vp := models.VendorProposal{Proposal: p}
		if v, err := m.VendorByID(context.Background(), p.VendorID); err == nil {
			vp.VendorName = v.Name
			vp.VendorEmail = v.Email
		}
		out = append(out, vp)
	}
	return out, nil
}

var errBrokenStore = errors.New("store unavailable")

type brokenStore struct{ memStore }

func (b *brokenStore) VendorsByEmail(context.Context, string) ([]models.Vendor, error) {
	return nil, errBrokenStore
}

func (b *brokenStore) RFPBySubject(context.Context, string) (*models.RFP, error) {
	return nil, errBrokenStore
}

// seededStore holds three vendors behind one mailbox, one elsewhere, and two RFPs.
func seededStore() *memStore {
	s := newMemStore()
	now := time.Now()
	budget := 10000.0
	s.vendors = []models.Vendor{
		{ID: 9, Name: "Gamma Supplies", Email: "sales@shared.example"},
		{ID: 3, Name: "Alpha Supplies", Email: "sales@shared.example"},
		{ID: 7, Name: "Beta Supplies", Email: "Sales@Shared.example"},
		{ID: 11, Name: "Solo Ltd", Email: "bids@solo.example"},
	}
	s.rfps = []models.RFP{
		{ID: 1, Title: "Office Chairs Procurement", Budget: &budget, CreatedAt: now.Add(-time.Hour)},
		{ID: 2, Title: "Laptops", CreatedAt: now},
	}
	return s
}
