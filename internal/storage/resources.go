package storage

// ProviderResponse is the payload of the external rate provider.
type ProviderResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}
