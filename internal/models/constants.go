package models

// Category taxonomy. Fixed set; unknown merchants fall back to
// CategoryOther without touching the candidate's confidence.
const (
	CategoryGroceries     = "groceries"
	CategoryDining        = "dining"
	CategoryTravel        = "travel"
	CategoryUtilities     = "utilities"
	CategorySubscriptions = "subscriptions"
	CategoryInvestments   = "investments"
	CategoryIncome        = "income"
	CategoryOther         = "other"
)

// Categories lists the full taxonomy in presentation order.
var Categories = []string{
	CategoryGroceries,
	CategoryDining,
	CategoryTravel,
	CategoryUtilities,
	CategorySubscriptions,
	CategoryInvestments,
	CategoryIncome,
	CategoryOther,
}

// File permissions for data files written by the registry store.
const (
	PermissionDataFile  = 0600
	PermissionDirectory = 0750
)
