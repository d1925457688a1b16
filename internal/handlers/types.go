package handlers

// HistoryRequest identifies one page of history for a symbol. All three
// parameters participate in the cache key, so distinct parameterizations
// never collide.
type HistoryRequest struct {
	ID    string `doc:"Symbol identifier"      example:"USD" path:"id"`
	Limit int    `default:"10"                 doc:"Entries per page" maximum:"100" minimum:"1" query:"limit"`
	Page  int    `default:"1"                  doc:"Page number"      minimum:"1"   query:"page"`
}

// errorEnvelope is the body of quota-denied and upstream-failure responses.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// QuotaWindowStatus reports one cap's usage. Reset is epoch seconds.
type QuotaWindowStatus struct {
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// QuotaStatusResponse is the response for the quota status endpoint.
type QuotaStatusResponse struct {
	Body struct {
		Success bool              `json:"success"`
		Minute  QuotaWindowStatus `json:"minute"`
		Month   QuotaWindowStatus `json:"month"`
	}
}
