package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	tests := []struct {
		name    string
		info    Info
		version string
		text    string
	}{
		{"empty", Info{}, "unknown", "unknown"},
		{"version only", Info{Version: "v1.2.0"}, "v1.2.0", "v1.2.0"},
		{
			"full",
			Info{Version: "v1.2.0", Commit: "abc123", BuildDate: "2026-01-02"},
			"v1.2.0", "v1.2.0 (abc123) built 2026-01-02",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.version, tt.info.GetVersion())
			assert.Equal(t, tt.text, tt.info.String())
		})
	}
}
