package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"duplo/internal/domain/model"
)

const readChunk = 1 << 20

func (f *Fingerprinter) hashSignature(ctx context.Context, path string) (model.Signature, error) {
	file, _, err := f.open(path)
	if err != nil {
		return model.Signature{}, err
	}
	defer file.Close()

	h := sha256.New()
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return model.Signature{}, err
		}
		n, rerr := file.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return model.Signature{}, &model.IOError{Path: path, Op: "read", Err: rerr}
		}
	}
	return model.Signature{Mode: model.CompareHash, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}
