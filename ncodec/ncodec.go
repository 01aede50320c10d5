// Package ncodec implements NLib's serialization-archive collaborator: a
// narrow Marshal/Unmarshal front door consumed by nresource and other
// packages that need to (de)serialize values without depending on
// encoding/json directly. The codec surface itself is deliberately
// stdlib-backed: no pack repo ships a JSON codec narrower than
// encoding/json for this purpose, so reaching further than the standard
// library here would add a dependency without adding capability.
package ncodec

import "encoding/json"

// Codec (de)serializes values to and from a byte representation.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is the default Codec, backed by encoding/json.
type JSON struct {
	// Indent, if non-empty, is used as the indentation prefix for
	// Marshal's output (via json.MarshalIndent).
	Indent string
}

// Marshal encodes v as JSON.
func (c JSON) Marshal(v any) ([]byte, error) {
	if c.Indent != "" {
		return json.MarshalIndent(v, "", c.Indent)
	}
	return json.Marshal(v)
}

// Unmarshal decodes data into v.
func (c JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Default is the package-level JSON codec used where callers don't need
// a custom configuration.
var Default Codec = JSON{}
