package pricing

// Input bounds for payloads coming from the upstream pricing feed.
const (
	// MaxRawPayloadChars caps JSON text accepted by ExtractMarketPrices
	MaxRawPayloadChars = 10000
	// MaxRawRecords caps the number of array elements inspected per payload
	MaxRawRecords = 100
	// MaxSubTypeNameLen caps subTypeName length (in characters)
	MaxSubTypeNameLen = 100
	// MaxPatternLen caps a sanitized variant pattern
	MaxPatternLen = 50
)

// Display and grading defaults. Every caller reads them from here so the
// "range vs single price" decision stays consistent across endpoints.
const (
	// DefaultVarianceThresholdPercent is the spread (in percent of the lowest
	// price) above which a price range is shown instead of a single price.
	DefaultVarianceThresholdPercent = 50.0
	// DefaultPriceThresholdUSD is the absolute spread above which a range is shown.
	DefaultPriceThresholdUSD = 5.0
	// DefaultGradingFeeUSD is the per-card grading cost used by grading economics.
	DefaultGradingFeeUSD = 25.0
	// CompactPriceCutoff is where PriceStyleCompact drops the cents.
	CompactPriceCutoff = 1000.0
)

// BasePattern is the sentinel the feed uses for the unstamped card.
const BasePattern = "base"
