package models

// ListingsScrapeRequest is the payload for POST /api/v1/listings/scrape.
type ListingsScrapeRequest struct {
	// URL is the search results page to fetch. Required.
	URL string `json:"url" binding:"required,url"`

	// Strategy selects how the page is acquired: "static", "dynamic" or
	// "auto". Default: "auto".
	Strategy string `json:"strategy,omitempty" binding:"omitempty,oneof=static dynamic auto"`

	// Timeout is the maximum duration in seconds for acquisition.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Stealth enables navigator.webdriver masking for the dynamic strategy.
	Stealth bool `json:"stealth,omitempty"`

	// MaxAge allows serving a cached result younger than this many
	// milliseconds. Zero disables the cache for this request.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *ListingsScrapeRequest) Defaults() {
	if r.Strategy == "" {
		r.Strategy = string(StrategyAuto)
	}
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}

// ListingsExtractRequest is the payload for POST /api/v1/listings/extract.
// The caller has already acquired the markup.
type ListingsExtractRequest struct {
	// HTML is the raw page markup. Required.
	HTML string `json:"html" binding:"required"`

	// SourceURL is where the markup came from, echoed back for reference.
	SourceURL string `json:"source_url,omitempty" binding:"omitempty,url"`

	// Strategy records how the caller acquired the markup. Default: "static".
	Strategy string `json:"strategy,omitempty" binding:"omitempty,oneof=static dynamic"`
}

// Defaults applies default values to unset fields.
func (r *ListingsExtractRequest) Defaults() {
	if r.Strategy == "" {
		r.Strategy = string(StrategyStatic)
	}
}
