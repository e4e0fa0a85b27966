package dataops

// Theme maps semantic roles to ANSI color indices (0-15). The terminal's
// own palette decides the actual RGB values.
type Theme struct {
	UserMsg  int // user question accent
	Author   int // stage name in event headers
	ToolCall int // function call header
	Result   int // function response header
	Error    int
	Consent  int // pending consent prompt
	Muted    int // status bar, placeholders
	CodeBg   int
	Accent   int // headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg:  4,
		Author:   6,
		ToolCall: 3,
		Result:   2,
		Error:    1,
		Consent:  3,
		Muted:    8,
		CodeBg:   0,
		Accent:   5,
	}
}
