package models

// DefaultBusinessName is used when a profile is created without a name.
const DefaultBusinessName = "ABC Solutions"

// BusinessProfile holds the issuer identity and branding of one owner.
type BusinessProfile struct {
	Base                `bson:",inline"`
	Owner               string  `bson:"owner" json:"owner"`
	BusinessName        string  `bson:"business_name" json:"businessName"`
	Email               string  `bson:"email" json:"email"`
	Address             string  `bson:"address" json:"address"`
	Phone               string  `bson:"phone" json:"phone"`
	Gst                 string  `bson:"gst" json:"gst"`
	LogoURL             *string `bson:"logo_url" json:"logoUrl"`
	StampURL            *string `bson:"stamp_url" json:"stampUrl"`
	SignatureURL        *string `bson:"signature_url" json:"signatureUrl"`
	SignatureOwnerName  string  `bson:"signature_owner_name" json:"signatureOwnerName"`
	SignatureOwnerTitle string  `bson:"signature_owner_title" json:"signatureOwnerTitle"`
	DefaultTaxPercent   float64 `bson:"default_tax_percent" json:"defaultTaxPercent"`
}
