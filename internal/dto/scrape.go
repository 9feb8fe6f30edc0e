package dto

// ScrapeRequest is the payload used by the scraping endpoint.
//
// Either Query is set directly, or it is derived from TypeBusiness and City/Country
// the way the API forwards scrape jobs.
type ScrapeRequest struct {
	Query        string `json:"query"`
	BatchID      string `json:"batch_id,omitempty" validate:"omitempty,uuid"`
	TypeBusiness string `json:"type_business,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
}

// ScrapeResponse is returned once a run has been launched.
type ScrapeResponse struct {
	BatchID string `json:"batch_id"`
	Query   string `json:"query"`
	Status  string `json:"status"`
}
