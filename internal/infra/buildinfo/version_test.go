package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	tests := []struct {
		name  string
		value string
	}{
		{"Version", info.Version},
		{"Commit", info.Commit},
		{"BuildTime", info.BuildTime},
		{"GoVersion", info.GoVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Errorf("%s should not be empty", tt.name)
			}
		})
	}

	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestGet_LdflagsWin(t *testing.T) {
	oldCommit := Commit
	Commit = "abc123"
	defer func() { Commit = oldCommit }()

	if got := Get().Commit; got != "abc123" {
		t.Errorf("Commit = %q, want abc123", got)
	}
}

func TestString(t *testing.T) {
	s := String()
	info := Get()

	if !strings.HasPrefix(s, info.Version+" ("+info.Commit+")") {
		t.Errorf("String() = %q, want version and commit prefix", s)
	}
	if !strings.HasSuffix(s, info.GoVersion) {
		t.Errorf("String() = %q, want Go version suffix", s)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent("nonceguard-cli"); got != "nonceguard-cli/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}
