package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func TestCurrentPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version without dirty suffix, got %q", got)
	}
	if got := CurrentWithDirty(); got != "v1.2.3+dirty" {
		t.Fatalf("expected dirty build version, got %q", got)
	}
	info := Describe()
	if info.Version != "v1.2.3+dirty" || !strings.HasSuffix(info.String(), " v1.2.3+dirty") {
		t.Fatalf("unexpected description: %+v", info)
	}
}

func TestPseudoFromBuildInfo(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	info := &debug.BuildInfo{
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	got := pseudoFromBuildInfo(info, true)
	if want := "v0.0.0-20250102030405-1234567890ab+dirty"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := pseudoFromBuildInfo(info, false); strings.HasSuffix(got, "+dirty") {
		t.Fatalf("expected clean version, got %q", got)
	}
	if pseudoFromBuildInfo(nil, true) != "" {
		t.Fatalf("expected empty version for nil build info")
	}
}
