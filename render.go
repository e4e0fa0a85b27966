package dataops

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RenderEvent formats an event as markdown. It is a pure function of the
// event and is total over the Part variants:
//
//	TextPart       **author**: text
//	ToolCallPart   **author** - Function Call: `name` + JSON args block
//	ToolResultPart **author** - Function Response: `name` + JSON response block
func RenderEvent(e Event) string {
	author := e.Author
	if author == "" {
		author = "unknown"
	}
	switch p := e.Part.(type) {
	case TextPart:
		return fmt.Sprintf("**%s**: %s", author, p.Text)
	case ToolCallPart:
		return fmt.Sprintf("**%s** - Function Call: `%s`\n```json\n%s\n```", author, orUnknown(p.Name), prettyJSON(p.Args))
	case ToolResultPart:
		return fmt.Sprintf("**%s** - Function Response: `%s`\n```json\n%s\n```", author, orUnknown(p.Name), prettyJSON(p.Response))
	default:
		return fmt.Sprintf("**%s**: ", author)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// prettyJSON indents v with two spaces. Nil maps render as {}.
func prettyJSON(v map[string]any) string {
	if v == nil {
		v = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatBytes renders a byte count, as carried in a consent prompt's
// bytes_processed argument, in binary units.
func FormatBytes(v any) string {
	var n float64
	switch x := v.(type) {
	case int64:
		n = float64(x)
	case int:
		n = float64(x)
	case float64:
		n = x
	default:
		return "unknown"
	}
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}
	i := 0
	for n >= 1024 && i < len(units)-1 {
		n /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f %s", n, units[i])
	}
	return fmt.Sprintf("%.2f %s", n, units[i])
}
