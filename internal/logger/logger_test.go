package logger

import (
	"testing"

	"github.com/ahricool/raise/internal/config"
)

func TestNew_FallsBackOnBadLevelAndEncoding(t *testing.T) {
	l, err := New(config.LogConfig{Level: "loud", Encoding: "xml"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !l.Core().Enabled(0) {
		t.Fatalf("info level should be enabled")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
