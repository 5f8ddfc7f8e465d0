package image

import (
	"fmt"
	goimage "image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"voicevision-tutor/internal/tempfile"
)

// Formats the OCR engine's image loader is not guaranteed to read.
var reencodeFormats = map[string]bool{
	"webp": true,
	"gif":  true,
}

// normalize returns a path the OCR engine can read. When the upload needs
// re-encoding a PNG copy is written and converted is true; the caller owns
// that file. Formats Go cannot decode are passed through untouched.
func normalize(files *tempfile.Manager, path string) (out string, converted bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return path, false, err
	}
	defer f.Close()

	_, format, err := goimage.DecodeConfig(f)
	if err != nil || !reencodeFormats[format] {
		return path, false, nil
	}

	if _, err := f.Seek(0, 0); err != nil {
		return path, false, err
	}
	img, _, err := goimage.Decode(f)
	if err != nil {
		return path, false, fmt.Errorf("decode %s: %w", format, err)
	}

	out = files.Path(uploadPrefix, ".png")
	dst, err := os.Create(out)
	if err != nil {
		return path, false, err
	}
	if err := png.Encode(dst, img); err != nil {
		dst.Close()
		files.Remove(out)
		return path, false, fmt.Errorf("encode png: %w", err)
	}
	if err := dst.Close(); err != nil {
		files.Remove(out)
		return path, false, err
	}
	return out, true, nil
}
