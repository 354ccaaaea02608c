// Package certificate renders participation certificates by writing a
// member's name onto a PDF template.
package certificate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"
	"golang.org/x/text/encoding/charmap"
)

const (
	fontFamily = "Helvetica"
	fontStyle  = "B"
	fontSize   = 15

	// baselineY is measured from the bottom edge of the page.
	baselineY = 290

	templateBox = "/MediaBox"
	filenameTag = "_Certificate.pdf"
)

var (
	ErrTemplate = errors.New("certificate: unusable template")

	// ErrUnencodable reports text the built-in PDF fonts cannot draw.
	ErrUnencodable = errors.New("certificate: text not representable in WinAnsi")
)

// Renderer overlays "{member} - {team}" onto the first page of a template.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render reads the template at templatePath and returns a new PDF with the
// certificate line centered horizontally. The template is read on every call.
func (r *Renderer) Render(ctx context.Context, member, team, templatePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line, err := encodeWinAnsi(Line(member, team))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTemplate, templatePath, err)
	}

	out, err := render(data, line)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", templatePath, err)
	}
	return out, nil
}

// Check renders a throwaway certificate to prove the template is readable
// and parseable before any mail goes out.
func Check(ctx context.Context, templatePath string) error {
	_, err := NewRenderer().Render(ctx, "Preflight", "Check", templatePath)
	return err
}

// Line is the text written on a certificate.
func Line(member, team string) string {
	return member + " - " + team
}

// Filename derives an attachment name from a member name. Every rune that is
// not an ASCII letter or digit becomes an underscore, so names that differ
// only in punctuation share a filename.
func Filename(member string) string {
	var b strings.Builder
	b.Grow(len(member) + len(filenameTag))
	for _, r := range member {
		if isASCIIAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString(filenameTag)
	return b.String()
}

func isASCIIAlnum(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

// encodeWinAnsi converts text to the Windows-1252 bytes the core fonts are
// indexed by. Runes outside that code page, and control characters, are
// rejected rather than replaced.
func encodeWinAnsi(text string) (string, error) {
	for _, r := range text {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q contains control character %U", ErrUnencodable, text, r)
		}
	}
	encoded, err := charmap.Windows1252.NewEncoder().String(text)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnencodable, text, err)
	}
	return encoded, nil
}

// render composes the certificate from WinAnsi-encoded text. gofpdi reports
// malformed input by panicking, so the import is guarded and surfaced as
// ErrTemplate.
func render(template []byte, text string) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrTemplate, p)
		}
	}()

	pdf := fpdf.New("P", "pt", "A4", "")
	importer := gofpdi.NewImporter()

	rs := io.ReadSeeker(bytes.NewReader(template))
	tpl := importer.ImportPageFromStream(pdf, &rs, 1, templateBox)

	width, height, err := pageSize(importer)
	if err != nil {
		return nil, err
	}

	pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
	importer.UseImportedTemplate(pdf, tpl, 0, 0, width, height)

	pdf.SetFont(fontFamily, fontStyle, fontSize)
	pdf.SetTextColor(0, 0, 0)
	x := (width - pdf.GetStringWidth(text)) / 2
	pdf.Text(x, height-baselineY, text)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func pageSize(importer *gofpdi.Importer) (float64, float64, error) {
	box, ok := importer.GetPageSizes()[1][templateBox]
	if !ok {
		return 0, 0, fmt.Errorf("%w: first page has no %s", ErrTemplate, templateBox)
	}
	width, height := box["w"], box["h"]
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: invalid page size %.1fx%.1f", ErrTemplate, width, height)
	}
	return width, height, nil
}
