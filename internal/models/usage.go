package models

// DateFormat is the calendar-date key used by the quota ledger. The ledger
// compares date strings for equality only; the format is otherwise opaque.
const DateFormat = "2006-01-02"

// DailyUsage is the quota ledger entry for one calendar day. Only the entry
// for "today" is logically active; a stored entry whose Date differs from
// today reads as zero (lazy rollover).
type DailyUsage struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Analytics holds the lifetime attempt counters for an installation. All
// fields are monotonically non-decreasing and TotalAttempts equals
// TotalSuccesses + TotalErrors.
type Analytics struct {
	TotalAttempts       int64 `json:"totalAttempts"`
	TotalSuccesses      int64 `json:"totalSuccesses"`
	TotalErrors         int64 `json:"totalErrors"`
	CumulativeLatencyMS int64 `json:"cumulativeLatencyMs"`
}

// AvgLatencyMS returns the mean latency per attempt, zero when no attempts
// have been recorded.
func (a Analytics) AvgLatencyMS() int64 {
	if a.TotalAttempts == 0 {
		return 0
	}
	return a.CumulativeLatencyMS / a.TotalAttempts
}

// SuccessRate returns the percentage of attempts that succeeded, 100 when no
// attempts have been recorded.
func (a Analytics) SuccessRate() int {
	if a.TotalAttempts == 0 {
		return 100
	}
	return int(a.TotalSuccesses * 100 / a.TotalAttempts)
}

// Settings holds the per-installation configuration the caller manages: the
// provider credential and the translation target language.
type Settings struct {
	APIKey         string `json:"apiKey"`
	TargetLanguage string `json:"targetLanguage"`
}
