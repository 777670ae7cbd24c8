package detect

import "testing"

func TestSniff_Lifecycle(t *testing.T) {
	input := `{"kind":"run-started","timestamp":"2024-01-01T00:00:00Z"}` + "\n" + `{"kind":"scenario-started"}`
	if got := Sniff([]byte(input)); got != Lifecycle {
		t.Errorf("expected Lifecycle, got %s", got)
	}
}

func TestSniff_LifecycleMidRun(t *testing.T) {
	input := `{"kind":"step-finished","ownerHint":"tc-1","status":"passed"}`
	if got := Sniff([]byte(input)); got != Lifecycle {
		t.Errorf("expected Lifecycle, got %s", got)
	}
}

func TestSniff_GoTestJSON(t *testing.T) {
	input := `{"Time":"2024-01-01T00:00:00Z","Action":"start","Package":"example.com/pkg"}` + "\n"
	if got := Sniff([]byte(input)); got != GoTestJSON {
		t.Errorf("expected GoTestJSON, got %s", got)
	}
}

func TestSniff_GoTestJSON_OutputAction(t *testing.T) {
	input := `{"Time":"2024-01-01T00:00:00Z","Action":"output","Package":"example.com/pkg","Output":"=== RUN TestFoo\n"}` + "\n"
	if got := Sniff([]byte(input)); got != GoTestJSON {
		t.Errorf("expected GoTestJSON, got %s", got)
	}
}

func TestSniff_Empty(t *testing.T) {
	if got := Sniff([]byte("")); got != Unknown {
		t.Errorf("expected Unknown for empty, got %s", got)
	}
}

func TestSniff_PlainText(t *testing.T) {
	if got := Sniff([]byte("this is not json")); got != Unknown {
		t.Errorf("expected Unknown for plain text, got %s", got)
	}
}

func TestSniff_InvalidJSON(t *testing.T) {
	if got := Sniff([]byte("{invalid")); got != Unknown {
		t.Errorf("expected Unknown for invalid JSON, got %s", got)
	}
}

func TestSniff_UnknownKind(t *testing.T) {
	if got := Sniff([]byte(`{"kind":"test-case-started"}`)); got != Unknown {
		t.Errorf("expected Unknown for foreign kind, got %s", got)
	}
}

func TestSniff_LeadingWhitespace(t *testing.T) {
	input := "\n\n  " + `{"kind":"run-started"}` + "\n"
	if got := Sniff([]byte(input)); got != Lifecycle {
		t.Errorf("expected Lifecycle with leading whitespace, got %s", got)
	}
}
