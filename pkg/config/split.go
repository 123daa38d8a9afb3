package config

import (
	"strings"
	"unicode"
)

// SplitQuotedFields splits in around white space, like strings.Fields,
// except inside regions delimited by quote. Inside a quoted region a
// backslash escapes the following character. Empty quoted regions
// produce empty fields.
func SplitQuotedFields(in string, quote rune) []string {
	type stateEnum int
	const (
		inSpace stateEnum = iota
		inField
		inQuote
		inQuoteEscaped
	)
	state := inSpace
	r := []string{}
	var field strings.Builder
	pending := false

	for _, ch := range in {
		switch state {
		case inSpace, inField:
			switch {
			case ch == quote:
				state = inQuote
				pending = true
			case unicode.IsSpace(ch):
				if pending {
					r = append(r, field.String())
					field.Reset()
					pending = false
				}
				state = inSpace
			default:
				field.WriteRune(ch)
				pending = true
				state = inField
			}
		case inQuote:
			switch ch {
			case quote:
				state = inField
			case '\\':
				state = inQuoteEscaped
			default:
				field.WriteRune(ch)
			}
		case inQuoteEscaped:
			field.WriteRune(ch)
			state = inQuote
		}
	}

	if pending {
		r = append(r, field.String())
	}
	return r
}
