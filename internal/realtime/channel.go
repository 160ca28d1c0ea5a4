package realtime

import "github.com/google/uuid"

// Channel identifies a registration target. Keys are structured rather than
// bare strings so brand-wide delivery matches on the BrandID field instead
// of string containment, which could cross-deliver between tenants whose
// ids happen to overlap textually.
type Channel struct {
	BrandID uuid.UUID
	BoothID uuid.UUID // uuid.Nil for brand-wide registrations
}

// BrandChannel returns the brand-wide channel for a tenant.
func BrandChannel(brandID uuid.UUID) Channel {
	return Channel{BrandID: brandID}
}

// BoothChannel returns the channel for one booth under a brand.
func BoothChannel(brandID, boothID uuid.UUID) Channel {
	return Channel{BrandID: brandID, BoothID: boothID}
}

func (c Channel) String() string {
	if c.BoothID == uuid.Nil {
		return "brand:" + c.BrandID.String()
	}
	return "booth:" + c.BoothID.String()
}
