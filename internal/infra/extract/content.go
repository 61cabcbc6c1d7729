package extract

import "strings"

// TextFromContentStream pulls the literal strings shown by Tj, TJ, ' and "
// out of a decoded PDF page content stream. It is best effort: fonts with
// custom encodings or hex strings come back empty.
func TextFromContentStream(s string) string {
	var b strings.Builder
	var pending strings.Builder

	flushLine := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '(':
			str, next := readLiteral(s, i)
			pending.WriteString(str)
			i = next
		case c == '%':
			for i < len(s) && s[i] != '\n' && s[i] != '\r' {
				i++
			}
		case isDelim(c):
			i++
		default:
			start := i
			for i < len(s) && !isDelim(s[i]) && s[i] != '(' && s[i] != '%' {
				i++
			}
			switch s[start:i] {
			case "Tj", "TJ":
				b.WriteString(pending.String())
				pending.Reset()
			case "'", "\"":
				flushLine()
				b.WriteString(pending.String())
				pending.Reset()
			case "Td", "TD", "T*", "ET":
				flushLine()
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', '[', ']', '<', '>', '{', '}', '/':
		return true
	}
	return false
}

// readLiteral decodes a PDF literal string starting at s[i] == '('.
func readLiteral(s string, i int) (string, int) {
	var out strings.Builder
	depth := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return out.String(), len(s)
			}
			i++
			switch e := s[i]; e {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case 'b', 'f':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := 0
				j := 0
				for j < 3 && i < len(s) && s[i] >= '0' && s[i] <= '7' {
					v = v*8 + int(s[i]-'0')
					i++
					j++
				}
				out.WriteByte(byte(v))
				continue
			case '\n', '\r':
			default:
				out.WriteByte(e)
			}
			i++
		case '(':
			if depth > 0 {
				out.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return out.String(), i
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), i
}
