package catalog

// SeedData returns the initial catalog served before an admin has saved
// anything. Kept deliberately small; the admin area replaces it.
func SeedData() *Data {
	return &Data{
		Brand:          "SPR Gadget",
		Currency:       "RM",
		WhatsAppNumber: "60123456789",
		Disclaimer:     "Prices are estimates. Final quote confirmed after inspection.",
		Brands: []Brand{
			{ID: "apple", Name: "Apple"},
		},
		Models: []Model{
			{ID: "iphone-11", Name: "iPhone 11", Brand: "apple"},
			{ID: "iphone-12", Name: "iPhone 12", Brand: "apple"},
			{ID: "iphone-13", Name: "iPhone 13", Brand: "apple"},
			{ID: "iphone-13-pro", Name: "iPhone 13 Pro", Brand: "apple"},
		},
		Issues: []Issue{
			{ID: "screen", Name: "Screen replacement"},
			{ID: "battery", Name: "Battery replacement"},
			{ID: "charging-port", Name: "Charging port"},
			{ID: "diagnosis", Name: "Diagnosis"},
		},
		Prices: []Price{
			{ModelID: "iphone-11", IssueID: "screen", Type: PriceFixed, Price: IntPtr(280), WarrantyDays: 90, ETA: "1-2 hours"},
			{ModelID: "iphone-11", IssueID: "battery", Type: PriceFixed, Price: IntPtr(150), WarrantyDays: 180, ETA: "1 hour"},
			{ModelID: "iphone-12", IssueID: "screen", Type: PriceRange, Min: IntPtr(350), Max: IntPtr(480), WarrantyDays: 90, ETA: "1-2 hours", Notes: "Depends on panel grade"},
			{ModelID: "iphone-13", IssueID: "charging-port", Type: PriceFrom, From: IntPtr(120), WarrantyDays: 90, ETA: "2-3 hours"},
			{ModelID: "iphone-13-pro", IssueID: "screen", Type: PriceTBD, WarrantyDays: 90, ETA: "TBC"},
			{ModelID: "iphone-11", IssueID: "diagnosis", Type: PriceFixed, Price: IntPtr(0), WarrantyDays: 0, ETA: "30 minutes"},
		},
	}
}
