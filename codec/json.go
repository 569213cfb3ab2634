package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Index files are small, read once per open and meant to be inspectable by
// hand, so a portable text format is preferred over a compact one.
type JSON struct{}

// Marshal encodes the value to indented JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the metadata codec used for array-group index files.
var Default Codec = GoJSON{}
