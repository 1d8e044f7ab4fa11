package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes command results as JSON, for scripts that pipe a
// nonce or verification result into jq.
type JSONFormatter struct{}

// Format writes data as indented JSON. HTML escaping is off so actions and
// subjects containing & < > print as typed.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
