package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("bad flag"), 2},
		{"not found", NotFoundError("unknown repository"), 4},
		{"auth", HostAuthError(fmt.Errorf("401")), 5},
		{"config", ConfigNotFound("docpipe.yaml"), 7},
		{"host", HostError("scan", fmt.Errorf("502")), 8},
		{"internal", InternalError("broken invariant", nil), 10},
		{"pipeline", StageFailed("processing", fmt.Errorf("boom")), 11},
		{"export", ExportError("./export", fmt.Errorf("read-only")), 11},
		{"daemon", DaemonError("already running"), 12},
		{"plain error", fmt.Errorf("anything"), 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(test.err); got != test.expected {
				t.Errorf("ExitCodeFor() = %d, want %d", got, test.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	terse := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	err := Wrap(fmt.Errorf("connect refused"), CategoryHost, SeverityError, "host request failed")

	short := terse.FormatError(err)
	if short != "host: host request failed" {
		t.Errorf("terse format = %q", short)
	}

	long := verbose.FormatError(err)
	if !strings.Contains(long, "connect refused") {
		t.Errorf("verbose format should include the cause, got %q", long)
	}

	// User-facing categories show the bare message.
	if got := terse.FormatError(ConfigRequired("host.organization")); got != "required configuration missing" {
		t.Errorf("config format = %q", got)
	}
}
