package nresource

import (
	"os"

	"github.com/joeycumines/nlib/ncodec"
)

// DataResource holds an arbitrary byte blob read from Path, grounded on
// the original's NDataResource.
type DataResource struct {
	*Base
	data []byte
}

// NewDataResource creates a DataResource bound to path.
func NewDataResource(path string) *DataResource {
	return &DataResource{Base: NewBase(path)}
}

// Data returns the loaded bytes, or nil before Load/after Unload.
func (d *DataResource) Data() []byte { return d.data }

// IsEmpty reports whether the resource currently holds no data.
func (d *DataResource) IsEmpty() bool { return len(d.data) == 0 }

func (d *DataResource) LoadInternal() error {
	data, err := os.ReadFile(d.Path())
	if err != nil {
		return err
	}
	d.data = data
	return nil
}

func (d *DataResource) UnloadInternal() { d.data = nil }

// TextResource holds the text contents of Path, grounded on the
// original's NTextResource.
type TextResource struct {
	*Base
	text string
}

// NewTextResource creates a TextResource bound to path.
func NewTextResource(path string) *TextResource {
	return &TextResource{Base: NewBase(path)}
}

// Text returns the loaded contents, or "" before Load/after Unload.
func (t *TextResource) Text() string { return t.text }

// IsEmpty reports whether the resource currently holds no text.
func (t *TextResource) IsEmpty() bool { return t.text == "" }

func (t *TextResource) LoadInternal() error {
	data, err := os.ReadFile(t.Path())
	if err != nil {
		return err
	}
	t.text = string(data)
	return nil
}

func (t *TextResource) UnloadInternal() { t.text = "" }

// ConfigResource decodes Path as JSON into a flat key/value map, grounded
// on the original's NConfigResource (GetValue/HasValue over a parsed
// config document), using ncodec in place of the original's bespoke
// CConfigValue parser.
type ConfigResource struct {
	*Base
	codec  ncodec.Codec
	values map[string]any
}

// NewConfigResource creates a ConfigResource bound to path, decoded with
// codec (ncodec.Default if nil).
func NewConfigResource(path string, codec ncodec.Codec) *ConfigResource {
	if codec == nil {
		codec = ncodec.Default
	}
	return &ConfigResource{Base: NewBase(path), codec: codec}
}

// HasValue reports whether key is present in the decoded document.
func (c *ConfigResource) HasValue(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Value returns the raw decoded value for key, or fallback if absent.
func (c *ConfigResource) Value(key string, fallback any) any {
	if v, ok := c.values[key]; ok {
		return v
	}
	return fallback
}

func (c *ConfigResource) LoadInternal() error {
	data, err := os.ReadFile(c.Path())
	if err != nil {
		return err
	}
	values := make(map[string]any)
	if err := c.codec.Unmarshal(data, &values); err != nil {
		return err
	}
	c.values = values
	return nil
}

func (c *ConfigResource) UnloadInternal() { c.values = nil }
