package billing

import (
	"github.com/vedant7151/Invoice-Generator/internal/models"
)

// MergeProfile returns a copy of inv with blank issuer, branding and
// signature fields filled from profile. Values already on the invoice win.
// Totals are recomputed on the copy.
func MergeProfile(inv models.Invoice, profile *models.BusinessProfile) models.Invoice {
	merged := inv
	merged.Items = append([]models.LineItem(nil), inv.Items...)
	if profile != nil {
		merged.FromBusinessName = firstNonEmpty(inv.FromBusinessName, profile.BusinessName)
		merged.FromEmail = firstNonEmpty(inv.FromEmail, profile.Email)
		merged.FromAddress = firstNonEmpty(inv.FromAddress, profile.Address)
		merged.FromPhone = firstNonEmpty(inv.FromPhone, profile.Phone)
		merged.FromGst = firstNonEmpty(inv.FromGst, profile.Gst)
		merged.LogoDataURL = firstNonNil(inv.LogoDataURL, profile.LogoURL)
		merged.StampDataURL = firstNonNil(inv.StampDataURL, profile.StampURL)
		merged.SignatureDataURL = firstNonNil(inv.SignatureDataURL, profile.SignatureURL)
		merged.SignatureName = firstNonEmpty(inv.SignatureName, profile.SignatureOwnerName)
		merged.SignatureTitle = firstNonEmpty(inv.SignatureTitle, profile.SignatureOwnerTitle)
	}
	ComputeInvoiceTotals(&merged)
	return merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
