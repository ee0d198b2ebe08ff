// Package export renders a room's live log into portable documents.
package export

import (
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/eldtechnologies/whiteboard/internal/models"
	"github.com/eldtechnologies/whiteboard/internal/raster"
)

// WritePDF writes segs as vector lines on a single page sized to the canvas.
// One canvas pixel maps to one PDF point.
func WritePDF(w io.Writer, segs []models.Segment, opts raster.Options) error {
	// Portrait keeps Wd/Ht as given; landscape would swap them.
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(opts.Width), Ht: float64(opts.Height)},
	})
	p.SetAutoPageBreak(false, 0)
	p.AddPage()
	p.SetLineWidth(opts.LineWidth)
	p.SetLineCapStyle("round")

	for _, s := range segs {
		c := raster.ParseColor(s.Color)
		p.SetDrawColor(int(c.R*255+0.5), int(c.G*255+0.5), int(c.B*255+0.5))
		p.Line(s.X0, s.Y0, s.X1, s.Y1)
	}

	if err := p.Error(); err != nil {
		return err
	}
	return p.Output(w)
}
