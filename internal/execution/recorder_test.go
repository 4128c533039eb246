package execution

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestJSONLRecorder(t *testing.T) {
	tmp := t.TempDir()
	path := tmp + "/outcomes.jsonl"

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	rec := Record{
		At:       time.Now(),
		Symbol:   "ABCUSD",
		Side:     "SELL",
		Kind:     "TAKE_PROFIT_LIMIT",
		Decision: "ACCEPTED",
		RawPrice: "0.142805123",
		Price:    "0.1428",
	}
	recorder.Record(rec)
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected one line in recorder output")
	}
	var decoded Record
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if decoded.Symbol != rec.Symbol || decoded.Decision != rec.Decision {
		t.Fatalf("unexpected decoded record")
	}
	if decoded.Price != "0.1428" {
		t.Fatalf("expected quantized price preserved, got %s", decoded.Price)
	}
}
