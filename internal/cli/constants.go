package cli

// Default values for CLI flags and formatted output.
const (
	// DefaultSearchLimit is the default number of search results to return.
	DefaultSearchLimit = 50
	// MaxNameLength is the widest package name shown in search results.
	MaxNameLength = 40
	// MaxArgLength is the widest source argument shown in source listings.
	MaxArgLength = 60
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
)
