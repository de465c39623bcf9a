package tracing

import (
	"testing"

	"github.com/54b3r/studykit-go/internal/logging"
)

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	if _, _, ok := newHandler(); ok {
		t.Fatal("newHandler reported enabled without keys")
	}
	flush := Setup(logging.Discard())
	if flush == nil {
		t.Fatal("Setup returned nil flush func")
	}
	flush()
}

func TestHostOrDefault(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "")
	if got := hostOrDefault(); got != "http://localhost:3000" {
		t.Errorf("default host = %q", got)
	}
	t.Setenv("LANGFUSE_HOST", "https://cloud.langfuse.com")
	if got := hostOrDefault(); got != "https://cloud.langfuse.com" {
		t.Errorf("host = %q", got)
	}
}
