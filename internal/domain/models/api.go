package models

// Requests for the analysis HTTP endpoints. Defined in domain for
// consistency with the batch CLI, which reads the same shapes from disk.

type AnalyzeRequest struct {
	News                 NewsInput `json:"news"`
	URL                  string    `json:"url" validate:"omitempty,url"`
	ModelTier            string    `json:"modelTier" validate:"omitempty,oneof=premium standard economy"`
	IncludeMarketContext *bool     `json:"includeMarketContext"`
	UseDispatcher        *bool     `json:"useDispatcher"`
	SkipExecutor         bool      `json:"skipExecutor"`
}

type BatchRequest struct {
	Items                []NewsInput `json:"items" validate:"required,min=1,max=200"`
	ModelTier            string      `json:"modelTier" validate:"omitempty,oneof=premium standard economy"`
	IncludeMarketContext *bool       `json:"includeMarketContext"`
	UseDispatcher        *bool       `json:"useDispatcher"`
	Concurrency          int         `json:"concurrency" default:"1" validate:"gte=1,lte=8"`
}

type DataRequestsRequest struct {
	Requests       []DataRequest `json:"requests" validate:"required,min=1"`
	AllowedSymbols []string      `json:"allowedSymbols"`
	ReferenceDate  string        `json:"referenceDate"`
}

type NormalizeRequest struct {
	Asset string `query:"asset" json:"asset" validate:"required"`
}
