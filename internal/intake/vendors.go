package intake

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/logger"
	"github.com/spigell/rfp-intake/internal/models"
)

var (
	angleAddressRe = regexp.MustCompile(`<([^>]+)>`)
	vendorMarkerRe = regexp.MustCompile(`(?im)^[ \t]*VENDOR[_ \t]*ID[ \t:]*(\d+)`)
)

// Step describes how much a resolution step narrowed its input.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// SenderAddress extracts the bare address from a From header value,
// preferring the angle-bracket form.
func SenderAddress(from string) (string, error) {
	address := strings.TrimSpace(from)
	if m := angleAddressRe.FindStringSubmatch(address); m != nil {
		address = strings.TrimSpace(m[1])
	}
	if address == "" || !strings.Contains(address, "@") {
		return "", validationError(ErrInvalidSender, fmt.Sprintf("could not extract an address from %q", from))
	}
	return address, nil
}

// VendorMarker returns the id given on a "VENDOR_ID: <n>" line, if any.
func VendorMarker(body string) (int64, bool) {
	return marker(vendorMarkerRe, body)
}

func marker(re *regexp.Regexp, s string) (int64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// VendorResolver maps a sender address to the vendor records it fronts.
type VendorResolver struct {
	store  VendorStore
	logger *zap.Logger
}

func NewVendorResolver(store VendorStore, log *zap.Logger) *VendorResolver {
	return &VendorResolver{store: store, logger: logger.WithFields(log)}
}

// Resolve returns every vendor registered under address, ordered by id,
// narrowed to one vendor when body carries a VENDOR_ID marker.
func (r *VendorResolver) Resolve(ctx context.Context, address, body string) ([]models.Vendor, Step, error) {
	vendors, err := r.store.VendorsByEmail(ctx, address)
	if err != nil {
		return nil, Step{}, persistenceError("find vendors by email", err)
	}
	if len(vendors) == 0 {
		return nil, Step{}, notFoundError(ErrVendorNotRegistered, "")
	}

	initial := len(vendors)
	id, ok := VendorMarker(body)
	if !ok {
		return vendors, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	for _, v := range vendors {
		if v.ID == id {
			step := Step{Initial: initial, Dropped: initial - 1, Left: 1}
			if step.Dropped > 0 {
				r.logger.Info("narrowing vendors by VENDOR_ID marker",
					zap.Int64(logger.FieldVendorID, id),
					zap.Int("initial_vendors", step.Initial),
					zap.Int("dropped_vendors", step.Dropped),
					zap.Int("vendors_left", step.Left),
				)
			}
			return []models.Vendor{v}, step, nil
		}
	}

	return nil, Step{Initial: initial, Dropped: initial, Left: 0},
		&Error{Kind: KindNotFound, Err: ErrVendorNotFoundForAddress, Details: fmt.Sprintf("VENDOR_ID %d is not registered under this address", id)}
}

// ByID loads a single vendor for manual submissions.
func (r *VendorResolver) ByID(ctx context.Context, id int64) (*models.Vendor, error) {
	vendor, err := r.store.VendorByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFoundError(ErrVendorNotFound, "")
	}
	if err != nil {
		return nil, persistenceError("find vendor", err)
	}
	return vendor, nil
}
