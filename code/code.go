package code

// Shared structured-log field keys.
const (
	FirstIndex = "first-index"
	LastIndex  = "last-index"
	Committed  = "committed"
	Applied    = "applied"

	SnapIndex = "snapshot-index"
	SnapTerm  = "snapshot-term"
	SnapSize  = "snapshot-size"
)
