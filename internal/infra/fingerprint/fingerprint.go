// Package fingerprint computes the per-file signatures the scanner groups on.
// Every mode is read-only; an unreadable file yields a *model.IOError that the
// caller records as a scan warning.
package fingerprint

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"

	"duplo/internal/domain/model"
	"duplo/internal/domain/signature"
)

const sniffSize = 262

var (
	imageExts = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "bmp": true, "tif": true, "tiff": true,
	}
	musicExts = map[string]bool{
		"mp3": true, "flac": true, "wav": true, "ogg": true, "m4a": true, "aac": true, "wma": true, "opus": true,
	}
	documentExts = map[string]bool{
		"txt": true, "md": true, "rst": true, "csv": true, "tsv": true, "html": true, "htm": true, "xml": true,
		"json": true, "rtf": true, "tex": true, "log": true, "docx": true, "odt": true,
	}
)

type Fingerprinter struct {
	fs afero.Fs
}

// New returns a Fingerprinter reading through fs. A nil fs reads the host
// filesystem.
func New(fs afero.Fs) *Fingerprinter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Fingerprinter{fs: fs}
}

// Eligible reports whether a file of the given size takes part in mode.
// Extensionless files are sniffed for image and music modes.
func (f *Fingerprinter) Eligible(path string, size int64, mode model.ComparisonType) bool {
	switch mode {
	case model.CompareHash:
		return size > 0
	case model.CompareEmptyFile:
		return size == 0
	}
	if size == 0 {
		return false
	}
	ext := extOf(path)
	switch mode {
	case model.CompareImageVisual:
		if imageExts[ext] {
			return true
		}
		if ext == "" {
			kind := f.sniff(path)
			return imageExts[kind]
		}
	case model.CompareMusic:
		if musicExts[ext] {
			return true
		}
		if ext == "" {
			kind := f.sniff(path)
			return musicExts[kind]
		}
	case model.CompareDocument:
		return documentExts[ext]
	case model.CompareCode:
		_, ok := codeStyles[ext]
		return ok
	}
	return false
}

// Signature computes the mode-specific signature of path. Fuzzy signatures
// with no extractable features come back with Empty set.
func (f *Fingerprinter) Signature(ctx context.Context, path string, mode model.ComparisonType) (model.Signature, error) {
	if err := ctx.Err(); err != nil {
		return model.Signature{}, err
	}
	switch mode {
	case model.CompareHash:
		return f.hashSignature(ctx, path)
	case model.CompareEmptyFile:
		return model.Signature{Mode: mode, Empty: true}, nil
	case model.CompareImageVisual:
		return f.imageSignature(path)
	case model.CompareDocument:
		return f.documentSignature(path)
	case model.CompareCode:
		return f.codeSignature(path)
	case model.CompareMusic:
		return f.musicSignature(ctx, path)
	}
	_, err := model.ParseComparisonType(string(mode))
	return model.Signature{}, err
}

// Similarity scores two signatures of the same mode in [0,1].
func Similarity(a, b model.Signature) float64 {
	switch a.Mode {
	case model.CompareHash:
		if a.Digest != "" && a.Digest == b.Digest {
			return 1
		}
		return 0
	case model.CompareEmptyFile:
		if a.Empty && b.Empty {
			return 1
		}
		return 0
	case model.CompareImageVisual, model.CompareDocument:
		return signature.BitSimilarity(a.Bits, b.Bits)
	case model.CompareCode, model.CompareMusic:
		return signature.Jaccard(a.Set, b.Set)
	}
	return 0
}

func (f *Fingerprinter) sniff(path string) string {
	file, err := f.fs.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	head := make([]byte, sniffSize)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return ""
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.Extension
}

func (f *Fingerprinter) open(path string) (afero.File, int64, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, 0, &model.IOError{Path: path, Op: "open", Err: err}
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, &model.IOError{Path: path, Op: "stat", Err: err}
	}
	return file, st.Size(), nil
}

func extOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
