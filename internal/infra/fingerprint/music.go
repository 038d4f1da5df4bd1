package fingerprint

import (
	"context"
	"io"

	"github.com/cespare/xxhash/v2"

	"duplo/internal/domain/model"
	"duplo/internal/domain/signature"
)

const (
	audioChunk   = 4 << 10
	id3v1Size    = 128
	id3v2Header  = 10
	id3FooterBit = 0x10
)

// musicSignature hashes the audio payload in fixed chunks. ID3 tags are
// excluded so retagged copies of the same recording still match.
func (f *Fingerprinter) musicSignature(ctx context.Context, path string) (model.Signature, error) {
	file, size, err := f.open(path)
	if err != nil {
		return model.Signature{}, err
	}
	defer file.Close()

	start, end, err := audioPayload(file, size)
	if err != nil {
		return model.Signature{}, &model.IOError{Path: path, Op: "read", Err: err}
	}

	r := io.NewSectionReader(file, start, end-start)
	buf := make([]byte, audioChunk)
	var chunks []uint64
	for {
		if err := ctx.Err(); err != nil {
			return model.Signature{}, err
		}
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			chunks = append(chunks, xxhash.Sum64(buf[:n]))
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return model.Signature{}, &model.IOError{Path: path, Op: "read", Err: rerr}
		}
	}
	set := signature.SetOf(chunks)
	if len(set) == 0 {
		return model.Signature{Mode: model.CompareMusic, Empty: true}, nil
	}
	return model.Signature{Mode: model.CompareMusic, Set: set, MinHash: signature.MinHash(set)}, nil
}

// audioPayload returns the byte range left after removing a leading ID3v2
// tag and a trailing ID3v1 tag.
func audioPayload(r io.ReaderAt, size int64) (int64, int64, error) {
	var start int64
	end := size

	head := make([]byte, id3v2Header)
	if size >= id3v2Header {
		if _, err := r.ReadAt(head, 0); err != nil && err != io.EOF {
			return 0, 0, err
		}
		if string(head[:3]) == "ID3" {
			tagSize := int64(head[6]&0x7f)<<21 | int64(head[7]&0x7f)<<14 | int64(head[8]&0x7f)<<7 | int64(head[9]&0x7f)
			start = id3v2Header + tagSize
			if head[5]&id3FooterBit != 0 {
				start += id3v2Header
			}
		}
	}

	if size-id3v1Size >= start {
		tail := make([]byte, 3)
		if _, err := r.ReadAt(tail, size-id3v1Size); err != nil && err != io.EOF {
			return 0, 0, err
		}
		if string(tail) == "TAG" {
			end = size - id3v1Size
		}
	}
	if start > end {
		start = end
	}
	return start, end, nil
}
