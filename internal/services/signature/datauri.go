package signature

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoding for uploaded signature images
	_ "image/png"
	"strings"
)

// Image is a decoded signature payload.
type Image struct {
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// DecodeDataURI parses a base64 image data URI (PNG or JPEG) and reads its
// dimensions.
func DecodeDataURI(uri string) (*Image, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, fmt.Errorf("data URI must be base64 encoded")
	}
	switch mime {
	case "image/png", "image/jpeg", "image/jpg":
	default:
		return nil, fmt.Errorf("unsupported image type %q", mime)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid image payload: %w", err)
	}
	return &Image{MIMEType: mime, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}
