package execution

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is the single structured line written for every terminal outcome.
// It carries pre- and post-quantization values and never any credential.
type Record struct {
	At             time.Time `json:"at"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Kind           string    `json:"kind"`
	Decision       string    `json:"decision"`
	Code           int       `json:"code,omitempty"`
	RawPrice       string    `json:"raw_price"`
	Price          string    `json:"price,omitempty"`
	RawQuantity    string    `json:"raw_quantity"`
	Quantity       string    `json:"quantity,omitempty"`
	OperatorAction string    `json:"operator_action,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// Sink receives terminal execution records.
type Sink interface {
	Record(Record)
}

// JSONLRecorder appends records as JSON lines for later analysis.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single outcome to the underlying JSONL file.
func (r *JSONLRecorder) Record(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(rec)
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
