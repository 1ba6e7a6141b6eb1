package httpapi

import "pkt.systems/rooboost/schema"

// Config defines HTTP API and UI settings.
type Config struct {
	Addr        string
	BaseURL     string
	BasePath    string
	HistorySize int
	// Sources are offered in the panel's source list.
	Sources []schema.SourceKey
}
