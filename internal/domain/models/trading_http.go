package models

// Requests for the trading and prediction HTTP endpoints. Defined in domain for consistency and reuse.

type PredictMultipleRequest struct {
	Days int `json:"days" default:"1" validate:"gte=1,lte=1000"`
}

type ResetRequest struct {
	ResetTrades bool `json:"reset_trades"`
}

// SettingsPatch is the typed settings update. Only recognized fields are
// applied; nil pointers leave the stored value untouched.
type SettingsPatch struct {
	BaseCurrency     *string            `json:"base_currency" validate:"omitempty,len=3,alpha"`
	InitialBalance   *float64           `json:"initial_balance" validate:"omitempty,gt=0"`
	Allocations      map[string]float64 `json:"currency_allocations" validate:"omitempty,dive,gte=0,lte=100"`
	ReverseModels    *[]string          `json:"reverse_models"`
	AutoTradeEnabled *bool              `json:"auto_trade_enabled"`
	AutoTradeTime    *string            `json:"auto_trade_time" validate:"omitempty,datetime=15:04"`
}

// NewsPoint is one region's news aggregate for a day.
type NewsPoint struct {
	Count float64 `json:"count"`
	Tone  float64 `json:"tone"`
}

// UpsertDayRequest adds or replaces one calendar day of market data.
type UpsertDayRequest struct {
	Date  string               `json:"date" validate:"required"`
	Forex map[string]float64   `json:"forex" validate:"omitempty,dive,gt=0"`
	Bonds map[string]float64   `json:"bonds"`
	News  map[string]NewsPoint `json:"news"`
}

type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}
