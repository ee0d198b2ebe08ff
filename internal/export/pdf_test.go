package export

import (
	"bytes"
	"testing"

	"github.com/eldtechnologies/whiteboard/internal/models"
	"github.com/eldtechnologies/whiteboard/internal/raster"
)

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	segs := []models.Segment{
		{X0: 0, Y0: 0, X1: 10, Y1: 10, Color: "#000"},
		{X0: 10, Y0: 10, X1: 20, Y1: 20, Color: "#f00"},
	}
	if err := WritePDF(&buf, segs, raster.Options{Width: 1920, Height: 1080, LineWidth: 3}); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestWritePDFEmptyLog(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, nil, raster.Options{Width: 300, Height: 600, LineWidth: 1}); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a one-page document")
	}
}
