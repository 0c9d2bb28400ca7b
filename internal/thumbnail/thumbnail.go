// Package thumbnail derives fixed-size square thumbnails from downloaded
// image bytes.
package thumbnail

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	// Register the WebP decoder; many script assets are WebP.
	_ "golang.org/x/image/webp"
)

// Size is the edge length in pixels of generated thumbnails.
const Size = 256

// Generate decodes data, crops/resizes it to a Size x Size square and
// re-encodes it in the format matching ext. Formats the encoder does not
// support (e.g. webp, svg) fall back to PNG output; the caller keys the
// thumbnail by extension, so falling back keeps the key stable while
// still producing a decodable image.
func Generate(data []byte, ext string) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}

	thumb := imaging.Fill(img, Size, Size, imaging.Center, imaging.Lanczos)

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		format = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format); err != nil {
		return nil, fmt.Errorf("thumbnail: encode: %w", err)
	}
	return buf.Bytes(), nil
}
