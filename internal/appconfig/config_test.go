package appconfig

import (
	"reflect"
	"testing"

	"pkt.systems/rooboost/schema"
)

func TestDefaultConfigSources(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Sources.Default != string(schema.DefaultSource) {
		t.Fatalf("expected default source %s, got %s", schema.DefaultSource, cfg.Sources.Default)
	}
	if cfg.Logging.DisableAuditTrails {
		t.Fatalf("expected audit trails enabled by default")
	}
}

func TestSourceKeysPutsDefaultFirst(t *testing.T) {
	cfg := Config{Sources: SourcesConfig{
		Default: "saoudrizwan.claude-dev",
		Known:   []string{"rooveterinaryinc.roo-cline", "saoudrizwan.claude-dev", ""},
	}}
	want := []schema.SourceKey{"saoudrizwan.claude-dev", "rooveterinaryinc.roo-cline"}
	if got := cfg.SourceKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
