package fingerprint

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"duplo/internal/domain/model"
	"duplo/internal/domain/signature"
)

const codeShingle = 4

type commentStyle struct {
	line         []string
	blockOpen    string
	blockClose   string
	// charLiterals marks languages where ' only quotes a single character,
	// so any other ' (a lifetime, a label) is plain code.
	charLiterals bool
}

var (
	cStyle      = commentStyle{line: []string{"//"}, blockOpen: "/*", blockClose: "*/", charLiterals: true}
	scriptStyle = commentStyle{line: []string{"//"}, blockOpen: "/*", blockClose: "*/"}
	hashStyle   = commentStyle{line: []string{"#"}}
	dashStyle   = commentStyle{line: []string{"--"}, blockOpen: "/*", blockClose: "*/"}
	codeStyles  = map[string]commentStyle{
		"go": cStyle, "java": cStyle, "c": cStyle, "h": cStyle, "cpp": cStyle, "hpp": cStyle,
		"cc": cStyle, "cs": cStyle, "rs": cStyle, "kt": cStyle, "scala": cStyle, "m": cStyle,
		"js": scriptStyle, "ts": scriptStyle, "jsx": scriptStyle, "tsx": scriptStyle,
		"swift": scriptStyle, "dart": scriptStyle,
		"php": {line: []string{"//", "#"}, blockOpen: "/*", blockClose: "*/"},
		"py": hashStyle, "rb": hashStyle, "sh": hashStyle, "pl": hashStyle, "r": hashStyle,
		"sql": dashStyle, "lua": {line: []string{"--"}},
	}
)

func (f *Fingerprinter) codeSignature(path string) (model.Signature, error) {
	file, _, err := f.open(path)
	if err != nil {
		return model.Signature{}, err
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxTextBytes))
	if err != nil {
		return model.Signature{}, &model.IOError{Path: path, Op: "read", Err: err}
	}
	tokens := tokenize(stripComments(string(raw), codeStyles[extOf(path)]))
	set := signature.Shingles(tokens, codeShingle)
	if len(set) == 0 {
		return model.Signature{Mode: model.CompareCode, Empty: true}, nil
	}
	return model.Signature{Mode: model.CompareCode, Set: set, MinHash: signature.MinHash(set)}, nil
}

// stripComments removes line and block comments outside string literals.
// Quoted literals other than backtick strings end at a newline, so a lone
// quote (a Rust lifetime, an apostrophe in shell) cannot swallow the rest of
// the file.
func stripComments(src string, style commentStyle) string {
	var b strings.Builder
	b.Grow(len(src))
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(src) {
					i++
					b.WriteByte(src[i])
				}
			case quote:
				quote = 0
			case '\n':
				if quote != '`' {
					quote = 0
				}
			}
			continue
		}
		if c == '\'' && style.charLiterals && !isCharLiteral(src[i:]) {
			b.WriteByte(c)
			continue
		}
		if c == '"' || c == '\'' || c == '`' {
			quote = c
			b.WriteByte(c)
			continue
		}
		if style.blockOpen != "" && strings.HasPrefix(src[i:], style.blockOpen) {
			end := strings.Index(src[i+len(style.blockOpen):], style.blockClose)
			if end < 0 {
				break
			}
			i += len(style.blockOpen) + end + len(style.blockClose) - 1
			b.WriteByte(' ')
			continue
		}
		if hasLineComment(src[i:], style.line) {
			nl := strings.IndexByte(src[i:], '\n')
			if nl < 0 {
				break
			}
			i += nl - 1
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// isCharLiteral reports whether s, which starts with ', opens a character
// literal such as 'x', 'é' or '\n'.
func isCharLiteral(s string) bool {
	if len(s) < 3 {
		return false
	}
	if s[1] == '\\' {
		end := len(s)
		if end > 12 {
			end = 12
		}
		return strings.IndexByte(s[2:end], '\'') >= 0
	}
	_, n := utf8.DecodeRuneInString(s[1:])
	return 1+n < len(s) && s[1+n] == '\''
}

func hasLineComment(s string, markers []string) bool {
	for _, m := range markers {
		if strings.HasPrefix(s, m) {
			return true
		}
	}
	return false
}

// tokenize splits source into identifier/number words and single
// punctuation runes, dropping whitespace.
func tokenize(src string) []string {
	var out []string
	start := -1
	for i, r := range src {
		word := r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if word {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, src[start:i])
			start = -1
		}
		if !unicode.IsSpace(r) {
			out = append(out, string(r))
		}
	}
	if start >= 0 {
		out = append(out, src[start:])
	}
	return out
}
