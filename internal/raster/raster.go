// Package raster flattens a room's segment log into an image.
package raster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/gogpu/gg"

	"github.com/eldtechnologies/whiteboard/internal/models"
)

// ErrNotDataURL is returned when a string is not a base64 data URL.
var ErrNotDataURL = errors.New("not a base64 data URL")

// Options controls the canvas the log is drawn onto.
type Options struct {
	Width     int
	Height    int
	LineWidth float64
}

var namedColors = map[string]string{
	"black": "#000000",
	"white": "#ffffff",
	"red":   "#ff0000",
	"green": "#008000",
	"blue":  "#0000ff",
}

// ParseColor resolves a segment color. Unknown colors fall back to black.
func ParseColor(color string) gg.RGBA {
	color = strings.TrimSpace(strings.ToLower(color))
	if hex, ok := namedColors[color]; ok {
		color = hex
	}
	if !strings.HasPrefix(color, "#") {
		return gg.Hex("#000000")
	}
	return gg.Hex(color)
}

// EncodePNG renders segs onto a transparent canvas and writes the result as PNG.
func EncodePNG(w io.Writer, segs []models.Segment, opts Options) error {
	dc, err := draw(nil, segs, opts)
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.EncodePNG(w)
}

// FlattenDataURL draws segs over the image in base and returns the result as
// a PNG data URL. An empty base starts from a transparent canvas; otherwise
// the base image sets the canvas size.
func FlattenDataURL(base string, segs []models.Segment, opts Options) (string, error) {
	var img image.Image
	if base != "" {
		var err error
		if img, err = decodeImage(base); err != nil {
			return "", err
		}
	}

	dc, err := draw(img, segs, opts)
	if err != nil {
		return "", err
	}
	defer dc.Close()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return "", err
	}
	return EncodeDataURL("image/png", buf.Bytes()), nil
}

// draw strokes every segment with round caps, matching the browser client.
func draw(base image.Image, segs []models.Segment, opts Options) (*gg.Context, error) {
	var dc *gg.Context
	if base != nil {
		dc = gg.NewContextForImage(base)
	} else {
		dc = gg.NewContext(opts.Width, opts.Height)
	}
	dc.SetLineWidth(opts.LineWidth)
	dc.SetLineCap(gg.LineCapRound)

	for _, s := range segs {
		dc.SetColor(ParseColor(s.Color).Color())
		dc.DrawLine(s.X0, s.Y0, s.X1, s.Y1)
		if err := dc.Stroke(); err != nil {
			dc.Close()
			return nil, err
		}
	}
	return dc, nil
}

func decodeImage(dataURL string) (image.Image, error) {
	mediaType, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mediaType, err)
	}
	return img, nil
}

// DecodeDataURL splits a base64 data URL into its media type and payload.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
