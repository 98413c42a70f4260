package ingest

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"docqa/internal/chunker"
	s3client "docqa/pkg/s3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for extensions other than pdf, docx, pptx and txt.
var ErrUnsupportedType = errors.New("unsupported file type")

// Document is the extracted text of one file plus metadata copied onto each of its chunks.
type Document struct {
	Text     string
	Metadata map[string]any
}

var supported = map[string]bool{".pdf": true, ".docx": true, ".pptx": true, ".txt": true}

// Supported reports whether the extension (with dot, any case) can be extracted.
func Supported(ext string) bool {
	return supported[strings.ToLower(ext)]
}

// Extract reads the file at path and returns its text. Every failure is wrapped with
// chunker.ErrExtraction so callers can treat it as a per-document extraction failure.
func Extract(path string) ([]Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chunker.ErrExtraction, err)
	}
	ext := strings.ToLower(filepath.Ext(abs))
	meta := map[string]any{
		"source":    abs,
		"file_type": strings.TrimPrefix(ext, "."),
	}

	var text string
	switch ext {
	case ".pdf":
		var pages int
		text, pages, err = extractPDF(abs)
		meta["pages"] = pages
	case ".docx":
		text, err = extractDOCX(abs)
	case ".pptx":
		var slides int
		text, slides, err = extractPPTX(abs)
		meta["slides"] = slides
	case ".txt":
		var b []byte
		b, err = os.ReadFile(abs)
		text = string(b)
	default:
		return nil, fmt.Errorf("%w: %w: %q", chunker.ErrExtraction, ErrUnsupportedType, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", chunker.ErrExtraction, filepath.Base(abs), err)
	}
	return []Document{{Text: sanitizeUTF8Printable(text), Metadata: meta}}, nil
}

// extractPDF extracts plain text page by page; pages are separated by a blank line.
func extractPDF(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		if t := strings.TrimSpace(text); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n\n"), n, nil
}

func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			return readOfficeXML(f, "p", "t")
		}
	}
	return "", errors.New("word/document.xml not found")
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPPTX(path string) (string, int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", 0, err
	}
	defer zr.Close()

	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, f: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		text, err := readOfficeXML(s.f, "p", "t")
		if err != nil {
			return "", 0, fmt.Errorf("slide %d: %w", s.n, err)
		}
		if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), len(slides), nil
}

// readOfficeXML collects character data of text elements, ending a line at each
// paragraph element. Namespaces are ignored: w:p/w:t in Word, a:p/a:t in slides.
func readOfficeXML(f *zip.File, paragraph, text string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		b      strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == text {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case text:
				inText = false
			case paragraph:
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// FetchToLocalTemp copies a local or s3:// object to a temporary file and returns a cleanup function.
func FetchToLocalTemp(ctx context.Context, filePath string) (string, func(), error) {
	ext := filepath.Ext(filePath)
	tmp, err := os.CreateTemp("", "ingest-*"+ext)
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	fail := func(err error) (string, func(), error) {
		tmp.Close()
		cleanup()
		return "", func() {}, err
	}

	var src io.ReadCloser
	if strings.HasPrefix(filePath, "s3://") {
		u, err := url.Parse(filePath)
		if err != nil {
			return fail(err)
		}
		cli, err := s3client.GetClient()
		if err != nil {
			return fail(err)
		}
		out, err := cli.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(u.Host),
			Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
		})
		if err != nil {
			return fail(err)
		}
		src = out.Body
	} else {
		f, err := os.Open(filePath)
		if err != nil {
			return fail(err)
		}
		src = f
	}
	defer src.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return tmp.Name(), cleanup, nil
}

// sanitizeUTF8Printable removes BOM and non-printable runes, keeping common whitespace.
func sanitizeUTF8Printable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\uFEFF' || r == unicode.ReplacementChar {
			continue
		}
		if r != '\n' && r != '\t' && r != '\r' && !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
