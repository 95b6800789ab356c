package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Texter is implemented by payloads with a human-readable rendering.
type Texter interface {
	WriteText(w io.Writer, width int) error
}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - text: Texter payloads render themselves; anything else falls back to
// indented JSON.
func Write(w io.Writer, v any, format string, pretty bool, width int) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "text":
		if t, ok := v.(Texter); ok {
			return t.WriteText(w, width)
		}
		return WriteJSON(w, v, true)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
