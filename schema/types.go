package schema

import (
	"encoding/json"
	"time"
)

// SourceKey names a sibling tool's storage namespace (for example rooveterinaryinc.roo-cline).
type SourceKey string

// PanelID identifies a live UI surface.
type PanelID string

// OperationID is the stable identifier of a bound command.
type OperationID string

// PluginName identifies a plugin. Names are not required to be unique.
type PluginName string

// DefaultSource is the source scanned when nothing else was selected.
const DefaultSource SourceKey = "rooveterinaryinc.roo-cline"

// TaskRecord is the read-only view of one task directory.
type TaskRecord struct {
	ID             string    `json:"id"`
	Path           string    `json:"path"`
	SummaryMessage string    `json:"summaryMessage"`
	ProjectName    string    `json:"projectName"`
	ModifiedAt     time.Time `json:"modifiedAt"`
}

// ShortIDLen is the display length of a task id.
const ShortIDLen = 8

// ShortID returns the id truncated for display.
func (t TaskRecord) ShortID() string {
	if len(t.ID) <= ShortIDLen {
		return t.ID
	}
	return t.ID[:ShortIDLen]
}

// MarshalJSON adds the display id to the wire form.
func (t TaskRecord) MarshalJSON() ([]byte, error) {
	type record TaskRecord
	return json.Marshal(struct {
		record
		ShortID string `json:"shortId"`
	}{record(t), t.ShortID()})
}
