package models

// ListingsResponse is the response for the listings endpoints.
type ListingsResponse struct {
	// Success indicates whether the run completed. A run whose blocks all
	// failed is still a success; a page without listings is not.
	Success bool `json:"success"`

	// StatusCode is the HTTP status code of the fetched page.
	StatusCode int `json:"status_code,omitempty"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url,omitempty"`

	// Title is the page title.
	Title string `json:"title,omitempty"`

	// Strategy is the requested acquisition strategy.
	Strategy string `json:"strategy,omitempty"`

	// EngineUsed is the fetch engine that produced the markup
	// (e.g. "static", "dynamic", "dynamic-stealth").
	EngineUsed string `json:"engine_used,omitempty"`

	// Backend is the query backend used to locate fields ("css" or "xpath").
	Backend string `json:"backend,omitempty"`

	// Summary carries the run counts.
	Summary *RunCounts `json:"summary,omitempty"`

	// Records are the surviving records in document order.
	Records []Record `json:"records"`

	// Failures describes blocks that yielded no record.
	Failures []BlockFailure `json:"failures,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus is "hit", "miss", or empty when caching was not requested.
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// RunCounts mirrors the pipeline's run summary counts.
type RunCounts struct {
	Total      int `json:"total"`
	Successes  int `json:"successes"`
	Partial    int `json:"partial"`
	Failures   int `json:"failures"`
	Duplicates int `json:"duplicates"`
}

// BlockFailure describes one listing block that produced no record.
type BlockFailure struct {
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
	Snippet string `json:"snippet,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// FetchMs is the time spent acquiring the markup.
	FetchMs int64 `json:"fetch_ms"`

	// ExtractMs is the time spent parsing and extracting.
	ExtractMs int64 `json:"extract_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	Browser   bool      `json:"browser"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
