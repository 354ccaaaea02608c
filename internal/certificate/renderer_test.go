package certificate

import (
	"bytes"
	"compress/zlib"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTemplate saves a single landscape A4 page to a temp dir. The page
// orientation differs from the document default so fpdf writes the
// MediaBox on the page itself.
func writeTemplate(t *testing.T) string {
	t.Helper()

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPageFormat("L", pdf.GetPageSizeStr("A4"))
	pdf.SetFont("Helvetica", "", 24)
	pdf.Text(72, 72, "Certificate of Participation")

	path := filepath.Join(t.TempDir(), "certificate.pdf")
	require.NoError(t, pdf.OutputFileAndClose(path))
	return path
}

func TestRender(t *testing.T) {
	path := writeTemplate(t)

	out, err := NewRenderer().Render(context.Background(), "Jo Lee", "Alpha", path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "output is not a PDF")

	// The rendered page keeps the template's dimensions.
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(out))
	importer.ImportPageFromStream(fpdf.New("P", "pt", "A4", ""), &rs, 1, templateBox)
	width, height, err := pageSize(importer)
	require.NoError(t, err)
	assert.InDelta(t, 841.89, width, 0.5)
	assert.InDelta(t, 595.28, height, 0.5)
}

func TestRenderRereadsTemplate(t *testing.T) {
	path := writeTemplate(t)
	r := NewRenderer()

	_, err := r.Render(context.Background(), "Jo Lee", "Alpha", path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	_, err = r.Render(context.Background(), "Jo Lee", "Alpha", path)
	require.ErrorIs(t, err, ErrTemplate)
}

func TestRenderMissingTemplate(t *testing.T) {
	_, err := NewRenderer().Render(context.Background(), "Jo Lee", "Alpha", filepath.Join(t.TempDir(), "nope.pdf"))
	require.ErrorIs(t, err, ErrTemplate)
}

func TestRenderMalformedTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certificate.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o600))

	_, err := NewRenderer().Render(context.Background(), "Jo Lee", "Alpha", path)
	require.ErrorIs(t, err, ErrTemplate)
}

func TestRenderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRenderer().Render(ctx, "Jo Lee", "Alpha", writeTemplate(t))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check(context.Background(), writeTemplate(t)))
	require.ErrorIs(t, Check(context.Background(), filepath.Join(t.TempDir(), "nope.pdf")), ErrTemplate)
}

func TestLine(t *testing.T) {
	assert.Equal(t, "Jo Lee - Alpha", Line("Jo Lee", "Alpha"))
}

func TestFilename(t *testing.T) {
	cases := []struct {
		member string
		want   string
	}{
		{"Jo Lee", "Jo_Lee_Certificate.pdf"},
		{"Ana-María O'Neil", "Ana_Mar_a_O_Neil_Certificate.pdf"},
		{"R2D2", "R2D2_Certificate.pdf"},
		{"", "_Certificate.pdf"},
		{"../etc/passwd", "___etc_passwd_Certificate.pdf"},
	}

	for _, tc := range cases {
		t.Run(tc.member, func(t *testing.T) {
			assert.Equal(t, tc.want, Filename(tc.member))
		})
	}
}

func TestFilenameCharset(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Za-z0-9_]*_Certificate\.pdf$`)
	for _, member := range []string{"Zoë Ng", "李雷", "a.b@c", "tab\tname", "  spaced  "} {
		assert.Regexp(t, valid, Filename(member), member)
	}
}

func TestFilenamePunctuationCollides(t *testing.T) {
	assert.Equal(t, Filename("Jo.Lee"), Filename("Jo-Lee"))
}

var (
	streamRe = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\nendstream`)
	textOpRe = regexp.MustCompile(`(?s)BT ([0-9.]+) ([0-9.]+) Td \((.*?)\) Tj ET`)
)

type drawnText struct {
	x, y float64
	text string
}

// drawnTexts inflates every stream in a PDF and collects its Td/Tj text
// operations.
func drawnTexts(t *testing.T, pdf []byte) []drawnText {
	t.Helper()

	var texts []drawnText
	for _, m := range streamRe.FindAllSubmatch(pdf, -1) {
		zr, err := zlib.NewReader(bytes.NewReader(m[1]))
		if err != nil {
			continue
		}
		content, _ := io.ReadAll(zr)
		for _, op := range textOpRe.FindAllSubmatch(content, -1) {
			x, err := strconv.ParseFloat(string(op[1]), 64)
			require.NoError(t, err)
			y, err := strconv.ParseFloat(string(op[2]), 64)
			require.NoError(t, err)
			texts = append(texts, drawnText{x: x, y: y, text: string(op[3])})
		}
	}
	return texts
}

func findText(t *testing.T, pdf []byte, text string) drawnText {
	t.Helper()
	for _, d := range drawnTexts(t, pdf) {
		if d.text == text {
			return d
		}
	}
	t.Fatalf("text %q not drawn", text)
	return drawnText{}
}

// boldWidth measures text in the certificate font.
func boldWidth(text string) float64 {
	ref := fpdf.New("P", "pt", "A4", "")
	ref.SetFont(fontFamily, fontStyle, fontSize)
	return ref.GetStringWidth(text)
}

func TestRenderDrawsCenteredLine(t *testing.T) {
	out, err := NewRenderer().Render(context.Background(), "Jo Lee", "Alpha", writeTemplate(t))
	require.NoError(t, err)

	d := findText(t, out, "Jo Lee - Alpha")
	assert.InDelta(t, (841.89-boldWidth("Jo Lee - Alpha"))/2, d.x, 0.01)
	assert.InDelta(t, 290, d.y, 0.01)
}

func TestRenderEncodesAccentedNames(t *testing.T) {
	out, err := NewRenderer().Render(context.Background(), "José Müller", "Équipe", writeTemplate(t))
	require.NoError(t, err)

	want := "Jos\xe9 M\xfcller - \xc9quipe"
	d := findText(t, out, want)
	assert.InDelta(t, (841.89-boldWidth(want))/2, d.x, 0.01)
	assert.InDelta(t, 290, d.y, 0.01)

	for _, drawn := range drawnTexts(t, out) {
		assert.NotContains(t, drawn.text, "\xc3", "UTF-8 bytes drawn with a WinAnsi font")
	}
}

func TestRenderRejectsUnencodableText(t *testing.T) {
	path := writeTemplate(t)

	cases := []struct {
		name, member, team string
	}{
		{"han characters", "李雷", "Alpha"},
		{"emoji in team", "Jo Lee", "Rockets 🚀"},
		{"control character", "Jo\tLee", "Alpha"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRenderer().Render(context.Background(), tc.member, tc.team, path)
			require.ErrorIs(t, err, ErrUnencodable)
		})
	}
}

func TestEncodeWinAnsi(t *testing.T) {
	got, err := encodeWinAnsi("Zoë – Ñandú €")
	require.NoError(t, err)
	assert.Equal(t, "Zo\xeb \x96 \xd1and\xfa \x80", got)
}
