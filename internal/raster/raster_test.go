package raster

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/eldtechnologies/whiteboard/internal/models"
)

func TestDrawStrokesSegments(t *testing.T) {
	opts := Options{Width: 100, Height: 100, LineWidth: 3}
	dc, err := draw(nil, []models.Segment{
		{X0: 10, Y0: 50, X1: 90, Y1: 50, Color: "#f00"},
	}, opts)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	defer dc.Close()
	img := dc.Image()

	if got := img.Bounds().Dx(); got != 100 {
		t.Fatalf("expected width 100, got %d", got)
	}

	r, _, _, a := img.At(50, 50).RGBA()
	if a == 0 || r == 0 {
		t.Fatalf("expected a red pixel on the stroke, got r=%d a=%d", r, a)
	}
	if _, _, _, a := img.At(50, 10).RGBA(); a != 0 {
		t.Fatalf("expected transparent background, got alpha %d", a)
	}
}

func decodePNGDataURL(t *testing.T, url string) image.Image {
	t.Helper()
	mediaType, data, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mediaType != "image/png" {
		t.Fatalf("expected image/png, got %s", mediaType)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	return img
}

func TestFlattenDataURLFromBlank(t *testing.T) {
	opts := Options{Width: 40, Height: 30, LineWidth: 2}
	url, err := FlattenDataURL("", []models.Segment{{X0: 0, Y0: 0, X1: 10, Y1: 10, Color: "#000"}}, opts)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	img := decodePNGDataURL(t, url)
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
}

func TestFlattenDataURLKeepsBase(t *testing.T) {
	opts := Options{Width: 40, Height: 40, LineWidth: 3}
	base, err := FlattenDataURL("", []models.Segment{{X0: 2, Y0: 5, X1: 38, Y1: 5, Color: "red"}}, opts)
	if err != nil {
		t.Fatalf("flatten base: %v", err)
	}

	// The base image decides the canvas size.
	layered, err := FlattenDataURL(base, []models.Segment{{X0: 2, Y0: 35, X1: 38, Y1: 35, Color: "blue"}}, Options{Width: 8, Height: 8, LineWidth: 3})
	if err != nil {
		t.Fatalf("flatten layered: %v", err)
	}

	img := decodePNGDataURL(t, layered)
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 40 {
		t.Fatalf("expected base bounds, got %v", img.Bounds())
	}
	if r, _, _, a := img.At(20, 5).RGBA(); a == 0 || r == 0 {
		t.Fatalf("expected base stroke to survive, got r=%d a=%d", r, a)
	}
	if _, _, b, a := img.At(20, 35).RGBA(); a == 0 || b == 0 {
		t.Fatalf("expected new stroke on top, got b=%d a=%d", b, a)
	}
}

func TestFlattenDataURLRejectsBadBase(t *testing.T) {
	opts := Options{Width: 8, Height: 8, LineWidth: 1}
	if _, err := FlattenDataURL("not a data url", nil, opts); !errors.Is(err, ErrNotDataURL) {
		t.Fatalf("expected ErrNotDataURL, got %v", err)
	}
	if _, err := FlattenDataURL(EncodeDataURL("image/png", []byte("nope")), nil, opts); err == nil {
		t.Fatal("expected image decode error")
	}
}

func TestDecodeDataURLRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "hello", "data:image/png,notbase64", "data:image/png;base64"} {
		if _, _, err := DecodeDataURL(in); !errors.Is(err, ErrNotDataURL) {
			t.Fatalf("%q: expected ErrNotDataURL, got %v", in, err)
		}
	}
	if _, _, err := DecodeDataURL("data:image/png;base64,!!!"); err == nil {
		t.Fatal("expected base64 error")
	}
}

func TestEncodeDataURLRoundTrip(t *testing.T) {
	url := EncodeDataURL("image/png", []byte{1, 2, 3})
	mediaType, data, err := DecodeDataURL(url)
	if err != nil || mediaType != "image/png" || !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Fatalf("round trip failed: %s %v %v", mediaType, data, err)
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in      string
		r, g, b float64
	}{
		{"#ff0000", 1, 0, 0},
		{"#0f0", 0, 1, 0},
		{"Blue", 0, 0, 1},
		{"rgb(1,2,3)", 0, 0, 0},
		{"", 0, 0, 0},
	}
	for _, tc := range cases {
		c := ParseColor(tc.in)
		if c.R != tc.r || c.G != tc.g || c.B != tc.b {
			t.Fatalf("%q: expected (%v,%v,%v), got %+v", tc.in, tc.r, tc.g, tc.b, c)
		}
	}
}
