package fingerprint

import (
	"archive/zip"
	"html"
	"io"
	"strings"
	"unicode"

	"duplo/internal/domain/model"
	"duplo/internal/domain/signature"
)

const (
	maxTextBytes    = 32 << 20
	documentShingle = 3
)

func (f *Fingerprinter) documentSignature(path string) (model.Signature, error) {
	text, err := f.extractText(path)
	if err != nil {
		return model.Signature{}, err
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return model.Signature{Mode: model.CompareDocument, Empty: true}, nil
	}
	shingles := signature.Shingles(words, documentShingle)
	return model.Signature{Mode: model.CompareDocument, Bits: signature.SimHash(shingles)}, nil
}

func (f *Fingerprinter) extractText(path string) (string, error) {
	file, size, err := f.open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	switch ext := extOf(path); ext {
	case "docx", "odt":
		entry := "word/document.xml"
		if ext == "odt" {
			entry = "content.xml"
		}
		zr, err := zip.NewReader(file, size)
		if err != nil {
			return "", &model.IOError{Path: path, Op: "unzip", Err: err}
		}
		for _, zf := range zr.File {
			if zf.Name != entry {
				continue
			}
			rc, err := zf.Open()
			if err != nil {
				return "", &model.IOError{Path: path, Op: "unzip", Err: err}
			}
			defer rc.Close()
			raw, err := io.ReadAll(io.LimitReader(rc, maxTextBytes))
			if err != nil {
				return "", &model.IOError{Path: path, Op: "read", Err: err}
			}
			return stripMarkup(string(raw)), nil
		}
		return "", nil
	default:
		raw, err := io.ReadAll(io.LimitReader(file, maxTextBytes))
		if err != nil {
			return "", &model.IOError{Path: path, Op: "read", Err: err}
		}
		switch ext {
		case "html", "htm", "xml":
			return stripMarkup(string(raw)), nil
		case "rtf":
			return stripRTF(string(raw)), nil
		}
		return string(raw), nil
	}
}

// stripMarkup drops tags and unescapes entities. Each tag becomes a space so
// adjacent elements do not fuse into one word.
func stripMarkup(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}

func stripRTF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '{', '}':
			b.WriteByte(' ')
		case '\\':
			j := i + 1
			if j < len(runes) && !unicode.IsLetter(runes[j]) {
				i = j
				b.WriteByte(' ')
				continue
			}
			for j < len(runes) && unicode.IsLetter(runes[j]) {
				j++
			}
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '-') {
				j++
			}
			if j < len(runes) && runes[j] == ' ' {
				j++
			}
			i = j - 1
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
