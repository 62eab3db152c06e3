package models

import "strings"

// Vendor identifies the issuer of an invoice. The value is the vendor's display name.
type Vendor string

const (
	VendorSunsetPress       Vendor = "Sunset Press"
	VendorReflexMedical     Vendor = "REFLEX MEDICAL CORP"
	VendorWolverinePrinting Vendor = "Wolverine Printing"
	VendorOmico             Vendor = "OMICO"
	VendorYesSolutions      Vendor = "YES Solutions LLC"
	VendorStolzleLausitz    Vendor = "Stölzle Glassware"
	VendorPridePrinting     Vendor = "Pride Printing LLC"
	VendorDimax             Vendor = "Dimax Corporation"
	VendorAmandaAndrews     Vendor = "AMANDA-ANDREWS PERSONNEL CORP"
	VendorABox              Vendor = "ABox"
	VendorUnknown           Vendor = "Unknown"
)

// knownVendors is the fixed detection and reporting order.
var knownVendors = []Vendor{
	VendorSunsetPress,
	VendorReflexMedical,
	VendorWolverinePrinting,
	VendorOmico,
	VendorYesSolutions,
	VendorStolzleLausitz,
	VendorPridePrinting,
	VendorDimax,
	VendorAmandaAndrews,
	VendorABox,
}

// vendorDirectories maps each vendor to its folder under the Bills tree
var vendorDirectories = map[Vendor]string{
	VendorReflexMedical:     "Reflex",
	VendorSunsetPress:       "Sunset",
	VendorWolverinePrinting: "Wolverine",
	VendorOmico:             "Omico",
	VendorYesSolutions:      "YesSolutions",
	VendorStolzleLausitz:    "Stolzle",
	VendorPridePrinting:     "PridePrinting",
	VendorDimax:             "DiMax",
	VendorAmandaAndrews:     "AmandaAndrews",
	VendorABox:              "ABox",
}

// KnownVendors returns all vendors except Unknown, in a stable order
func KnownVendors() []Vendor {
	out := make([]Vendor, len(knownVendors))
	copy(out, knownVendors)
	return out
}

// String returns the display name
func (v Vendor) String() string {
	return string(v)
}

// IsKnown reports whether v is one of the supported vendors
func (v Vendor) IsKnown() bool {
	_, ok := vendorDirectories[v]
	return ok
}

// Directory returns the vendor's folder name, or "" for Unknown
func (v Vendor) Directory() string {
	return vendorDirectories[v]
}

// ParseVendor resolves a display name or a directory name, case-insensitively.
// Anything unrecognised yields VendorUnknown.
func ParseVendor(s string) Vendor {
	s = strings.TrimSpace(s)
	if s == "" {
		return VendorUnknown
	}
	for _, v := range knownVendors {
		if strings.EqualFold(string(v), s) || strings.EqualFold(vendorDirectories[v], s) {
			return v
		}
	}
	return VendorUnknown
}

// VendorForDirectory resolves a Bills/<dir> folder name
func VendorForDirectory(dir string) (Vendor, bool) {
	for v, d := range vendorDirectories {
		if strings.EqualFold(d, dir) {
			return v, true
		}
	}
	return VendorUnknown, false
}
