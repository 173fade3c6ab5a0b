package format

import (
	"strings"
	"unicode"
)

// contentStreamText recovers the text shown by a page content stream by
// scanning its text-show operators (Tj, TJ, ', "). Positioning
// operators that start a new line (Td, TD, T*) become line breaks.
// Fonts are not decoded, so CID-keyed strings that do not round-trip
// through a byte encoding are filtered out rather than emitted as
// garbage.
func contentStreamText(data []byte) string {
	var out strings.Builder
	var pending []string

	emit := func() {
		for _, s := range pending {
			out.WriteString(s)
		}
		if len(pending) > 0 {
			out.WriteString(" ")
		}
		pending = nil
	}

	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := literalString(data, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '<':
			s, next := hexString(data, i)
			pending = append(pending, s)
			i = next
		case isRegular(c):
			start := i
			for i < len(data) && isRegular(data[i]) {
				i++
			}
			handleKeyword(string(data[start:i]), &out, emit, &pending)
		case c == '\'' || c == '"':
			// ' and " both move to the next line before showing.
			if out.Len() > 0 {
				out.WriteString("\n")
			}
			emit()
			i++
		default:
			i++
		}
	}
	emit()

	return cleanText(out.String())
}

func handleKeyword(kw string, out *strings.Builder, emit func(), pending *[]string) {
	switch kw {
	case "Tj", "TJ":
		emit()
	case "Td", "TD", "T*", "ET":
		*pending = nil
		if out.Len() > 0 {
			out.WriteString("\n")
		}
	default:
		if isOperator(kw) {
			*pending = nil
		}
	}
}

// isOperator reports whether a bare token is an operator keyword rather
// than a numeric operand.
func isOperator(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '*' {
			return true
		}
	}
	return false
}

// isRegular reports whether c can appear in a bare token (number or
// operator keyword).
func isRegular(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', '\x00',
		'(', ')', '<', '>', '[', ']', '{', '}', '/', '%', '\'', '"':
		return false
	}
	return true
}

// literalString parses a (...) string starting at i, handling escapes
// and nested parentheses. Returns the decoded text and the index past
// the closing paren.
func literalString(data []byte, i int) (string, int) {
	var sb strings.Builder
	depth := 0
	for ; i < len(data); i++ {
		c := data[i]
		switch c {
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte(c)
			}
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		case '\\':
			if i+1 >= len(data) {
				break
			}
			i++
			switch data[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
				// ignore
			case '(', ')', '\\':
				sb.WriteByte(data[i])
			case '\n':
				// line continuation
			default:
				if data[i] >= '0' && data[i] <= '7' {
					v := 0
					for n := 0; n < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7'; n++ {
						v = v*8 + int(data[i]-'0')
						i++
					}
					i--
					sb.WriteByte(byte(v))
				} else {
					sb.WriteByte(data[i])
				}
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), i
}

// hexString parses a <...> string starting at i. Returns the decoded
// bytes as text and the index past the closing bracket.
func hexString(data []byte, i int) (string, int) {
	i++ // skip '<'
	var nibbles []byte
	for ; i < len(data) && data[i] != '>'; i++ {
		c := data[i]
		switch {
		case c >= '0' && c <= '9':
			nibbles = append(nibbles, c-'0')
		case c >= 'a' && c <= 'f':
			nibbles = append(nibbles, c-'a'+10)
		case c >= 'A' && c <= 'F':
			nibbles = append(nibbles, c-'A'+10)
		}
	}
	if i < len(data) {
		i++ // skip '>'
	}
	if len(nibbles)%2 != 0 {
		nibbles = append(nibbles, 0)
	}
	var sb strings.Builder
	for n := 0; n < len(nibbles); n += 2 {
		sb.WriteByte(nibbles[n]<<4 | nibbles[n+1])
	}
	return sb.String(), i
}

// cleanText normalizes extracted text: control bytes become spaces,
// runs of whitespace collapse within lines, empty lines drop. Text with
// no letters or digits is considered unusable and discarded.
func cleanText(s string) string {
	usable := false
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsControl(r) || r == unicode.ReplacementChar
		})
		if len(fields) == 0 {
			continue
		}
		for _, f := range fields {
			for _, r := range f {
				if unicode.IsLetter(r) || unicode.IsDigit(r) {
					usable = true
				}
			}
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	if !usable {
		return ""
	}
	return strings.Join(lines, "\n")
}
