package search

// Result is a single job sheet hit returned to the caller.
type Result struct {
	ID          int64  `json:"id"`
	JobSheetNo  string `json:"jobSheetNo"`
	ContractNo  string `json:"contractNo"`
	TeamNo      string `json:"teamNo"`
	SiteForeman string `json:"siteForeman"`
	Date        string `json:"date"`
	Status      string `json:"status"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Status string // empty = any status
	Limit  int
}

// Response is what the API returns for a search.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Record is the indexed shape of a job sheet.
type Record struct {
	ID          int64  `json:"id"`
	JobSheetNo  string `json:"jobSheetNo"`
	ContractNo  string `json:"contractNo"`
	TeamNo      string `json:"teamNo"`
	SiteForeman string `json:"siteForeman"`
	Date        string `json:"date"`
	Status      string `json:"status"`
}
