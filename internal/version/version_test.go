package version

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want []string
		not  []string
	}{
		{
			name: "dev build",
			info: Info{Version: "dev", BuildTime: "unknown", GoVersion: "go1.24.4"},
			want: []string{"Version: dev", "Go: go1.24.4"},
			not:  []string{"Built:", "Commit:"},
		},
		{
			name: "release with modified tree",
			info: Info{Version: "1.2.0", BuildTime: "2026-10-01", VCSRevision: "0123456789abcdef", VCSModified: true},
			want: []string{"Version: 1.2.0", "Built: 2026-10-01", "Commit: 01234567 (modified)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.String()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("String() = %q, missing %q", got, w)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(got, n) {
					t.Errorf("String() = %q, should not contain %q", got, n)
				}
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version || info.BuildTime != BuildTime {
		t.Errorf("Get() = %+v", info)
	}
}

func TestInfoCheck(t *testing.T) {
	if got := (Info{Version: "1.0.0", VCSRevision: "abc"}).Check(); got != "" {
		t.Errorf("clean build warned: %q", got)
	}
	if got := (Info{Version: "1.0.0", VCSRevision: "abc", VCSModified: true}).Check(); !strings.Contains(got, "modified") {
		t.Errorf("modified build: %q", got)
	}
	if got := (Info{Version: "dev"}).Check(); !strings.Contains(got, "development build") {
		t.Errorf("dev build: %q", got)
	}
}
