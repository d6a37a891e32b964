// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
)

// Letter is a US Letter page in points.
var Letter = [2]float64{612, 792}

// MinimalPDF builds a valid, uncompressed PDF with one empty page per size
// given (width, height in points). With no sizes it produces one Letter page.
func MinimalPDF(sizes ...[2]float64) []byte {
	if len(sizes) == 0 {
		sizes = [][2]float64{Letter}
	}

	var objects []string
	kids := ""
	// Object 1 is the catalog and 2 the page tree; each page then takes two
	// objects (page, content stream).
	for i, size := range sizes {
		pageNum := 3 + i*2
		kids += fmt.Sprintf("%d 0 R ", pageNum)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> /Contents %d 0 R >>", size[0], size[1], pageNum+1),
			"<< /Length 0 >>\nstream\n\nendstream",
		)
	}
	objects = append([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(sizes)),
	}, objects...)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
