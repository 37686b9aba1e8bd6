package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/instantiator"
)

// Format is an output encoding for flattened instances.
type Format string

// Supported formats.
const (
	JSON    Format = "json"
	Msgpack Format = "msgpack"
)

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case JSON, Msgpack:
		return f, nil
	default:
		return "", hydrate.NewConfigError("", "format", s, "expected json or msgpack")
	}
}

// Flatten returns the attribute values of obj keyed by attribute name. The
// managed type name is stored under instantiator.TypeKey.
func (l *Loader) Flatten(obj any) (map[string]any, error) {
	t, ok := l.mm.Classify(obj)
	if !ok {
		return nil, hydrate.NewUnsupportedError("Flatten", fmt.Sprintf("%T is not a managed type", obj))
	}
	if m, ok := obj.(map[string]any); ok {
		return maps.Clone(m), nil
	}
	layout := t.Representation().Layout()
	if layout == nil {
		return nil, hydrate.NewUnsupportedError("Flatten", fmt.Sprintf("type %s has no value layout", t.Name()))
	}
	values, err := layout.Extract(obj)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(values)+1)
	for i, name := range layout.Names() {
		out[name] = values[i]
	}
	out[instantiator.TypeKey] = t.Name()
	return out, nil
}

// Encode flattens objs and writes them to w as one document in format f.
func (l *Loader) Encode(w io.Writer, f Format, objs []any) error {
	records := make([]map[string]any, 0, len(objs))
	for _, obj := range objs {
		r, err := l.Flatten(obj)
		if err != nil {
			return err
		}
		records = append(records, r)
	}
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case Msgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		return enc.Encode(records)
	default:
		return hydrate.NewConfigError("", "format", string(f), "expected json or msgpack")
	}
}
