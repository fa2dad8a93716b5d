package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// CurrentSchemaVersion is the schema version of every JSON document the CLI prints.
const CurrentSchemaVersion = "1.0.0"

// DataFile describes the data object of a container.
type DataFile struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
}

// Signature describes one signature of the chain.
type Signature struct {
	Index         int        `json:"index"`
	Profile       string     `json:"profile"`
	Subject       string     `json:"subject"`
	Archive       bool       `json:"archive"`
	GenTime       *time.Time `json:"genTime,omitempty"`
	SerialNumber  string     `json:"serialNumber,omitempty"`
	Policy        string     `json:"policy,omitempty"`
	HashAlgorithm string     `json:"hashAlgorithm,omitempty"`
	TSA           string     `json:"tsa,omitempty"`
	Valid         *bool      `json:"valid,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// MetadataEntry describes one META-INF entry.
type MetadataEntry struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Size      int    `json:"size"`
	Root      bool   `json:"root,omitempty"`
}

// InspectOutput is printed by "inspect --format json".
type InspectOutput struct {
	SchemaVersion string          `json:"schemaVersion"`
	Container     string          `json:"container"`
	DataFile      *DataFile       `json:"dataFile,omitempty"`
	Signatures    []Signature     `json:"signatures"`
	Metadata      []MetadataEntry `json:"metadata"`
	ElapsedMs     int64           `json:"elapsedMs"`
}

// VerifyOutput is printed by "verify --format json".
type VerifyOutput struct {
	SchemaVersion string      `json:"schemaVersion"`
	Container     string      `json:"container"`
	Valid         bool        `json:"valid"`
	Signatures    []Signature `json:"signatures"`
	ElapsedMs     int64       `json:"elapsedMs"`
}

// SignOutput is printed by "sign --format json".
type SignOutput struct {
	SchemaVersion string    `json:"schemaVersion"`
	Container     string    `json:"container"`
	Kind          string    `json:"kind"`
	Subject       string    `json:"subject"`
	GenTime       time.Time `json:"genTime"`
	Entries       []string  `json:"entries"`
	ElapsedMs     int64     `json:"elapsedMs"`
}

// DetectOutput is printed by "detect --format json".
type DetectOutput struct {
	SchemaVersion string `json:"schemaVersion"`
	Path          string `json:"path"`
	Format        string `json:"format"`
}

// NewInspectOutput returns an InspectOutput with empty, non-nil lists.
func NewInspectOutput(container string) *InspectOutput {
	return &InspectOutput{
		SchemaVersion: CurrentSchemaVersion,
		Container:     container,
		Signatures:    []Signature{},
		Metadata:      []MetadataEntry{},
	}
}

// NewVerifyOutput returns a VerifyOutput with an empty, non-nil signature list.
func NewVerifyOutput(container string) *VerifyOutput {
	return &VerifyOutput{
		SchemaVersion: CurrentSchemaVersion,
		Container:     container,
		Signatures:    []Signature{},
	}
}

// WriteJSON writes v as indented JSON.
// With --format json, all JSON goes to stdout and all messages to stderr.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// MeasureElapsed returns elapsed time in milliseconds since start
func MeasureElapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// JSONOutputWriter writes JSON to stdout and messages to stderr
type JSONOutputWriter struct {
	stdout io.Writer
	stderr io.Writer
}

// NewJSONOutputWriter creates a new JSON output writer
func NewJSONOutputWriter(stdout, stderr io.Writer) *JSONOutputWriter {
	return &JSONOutputWriter{stdout: stdout, stderr: stderr}
}

// WriteJSON writes JSON to stdout
func (w *JSONOutputWriter) WriteJSON(v any) error {
	return WriteJSON(w.stdout, v)
}

// WriteWarning writes a warning message to stderr
func (w *JSONOutputWriter) WriteWarning(format string, args ...any) {
	_, _ = fmt.Fprintf(w.stderr, "Warning: "+format+"\n", args...)
}
