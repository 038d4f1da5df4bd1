package fingerprint

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"duplo/internal/domain/model"
)

func (f *Fingerprinter) imageSignature(path string) (model.Signature, error) {
	file, _, err := f.open(path)
	if err != nil {
		return model.Signature{}, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return model.Signature{}, &model.IOError{Path: path, Op: "decode", Err: err}
	}
	return model.Signature{Mode: model.CompareImageVisual, Bits: dHash(img)}, nil
}

// dHash compares horizontally adjacent pixels of a 9x8 grayscale thumbnail.
// Bit i is set when pixel i is brighter than its right neighbour.
func dHash(img image.Image) uint64 {
	thumb := image.NewGray(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	var out uint64
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if thumb.GrayAt(x, y).Y > thumb.GrayAt(x+1, y).Y {
				out |= 1 << uint(bit)
			}
			bit++
		}
	}
	return out
}
