package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{
		Level:      WARN,
		Output:     &buf,
		Components: map[Component]bool{ComponentApp: true},
	})
	app := l.WithComponent(ComponentApp)

	app.Info("hidden")
	app.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("INFO entry leaked past WARN level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("WARN entry missing")
	}
}

func TestComponentToggle(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{
		Level:      TRACE,
		Output:     &buf,
		Components: map[Component]bool{ComponentCipher: false, ComponentProxy: true},
	})

	l.WithComponent(ComponentCipher).Error("cipher noise")
	l.WithComponent(ComponentProxy).Info("proxy line")

	out := buf.String()
	if strings.Contains(out, "cipher noise") {
		t.Error("disabled component produced output")
	}
	if !strings.Contains(out, "proxy line") {
		t.Error("enabled component missing output")
	}

	l.EnableComponent(ComponentCipher, true)
	l.WithComponent(ComponentCipher).Info("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("re-enabled component still silent")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{
		Level:      INFO,
		Format:     FormatJSON,
		Output:     &buf,
		Components: map[Component]bool{ComponentAPI: true},
	})

	l.WithComponent(ComponentAPI).WithFields(INFO, "request done", map[string]any{"status": 200})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if entry.Component != ComponentAPI || entry.Message != "request done" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["status"] != float64(200) {
		t.Errorf("fields = %v", entry.Fields)
	}
}

func TestFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: INFO, Output: &buf, Components: map[Component]bool{}})
	l.WithComponent(ComponentApp).Info("got %d formats", 7)
	if !strings.Contains(buf.String(), "got 7 formats") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"trace": TRACE,
		"DEBUG": DEBUG,
		"Info":  INFO,
		"warn":  WARN,
		"error": ERROR,
		"bogus": INFO,
		"":      INFO,
	}
	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if got := ParseFormat("json"); got != FormatJSON {
		t.Errorf("ParseFormat(json) = %v", got)
	}
	if got := ParseFormat("text"); got != FormatText {
		t.Errorf("ParseFormat(text) = %v", got)
	}
	if got := ParseFormat(""); got != FormatText {
		t.Errorf("ParseFormat(empty) = %v", got)
	}
}
