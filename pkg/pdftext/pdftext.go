// Package pdftext turns PDF bytes into per-page text lines.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrEmptyDocument = errors.New("pdf document is empty")
	ErrNoText        = errors.New("pdf document has no text layer")
)

// wordGapRatio is the horizontal gap, relative to the font size, above which
// two text runs on the same row are treated as separate words.
const wordGapRatio = 0.15

// Reader extracts text from PDF documents.
type Reader struct{}

// NewReader creates a PDF text reader.
func NewReader() *Reader {
	return &Reader{}
}

// ExtractText returns the text of every page joined by newlines, in reading order.
func (r *Reader) ExtractText(ctx context.Context, data []byte, password string) (string, error) {
	pages, err := r.ExtractPages(ctx, data, password)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}

// ExtractPages returns one string per page. Password-protected documents are
// decrypted first when a password is given; the password is ignored for
// documents that are not encrypted.
func (r *Reader) ExtractPages(ctx context.Context, data []byte, password string) (pages []string, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	if password != "" && isEncrypted(data) {
		data, err = decrypt(data, password)
		if err != nil {
			return nil, err
		}
	}

	// the pdf library panics on some malformed documents
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("pdf library crashed: %v", rec)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := doc.NumPage()
	if numPages == 0 {
		return nil, ErrEmptyDocument
	}

	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, rowErr := page.GetTextByRow()
		if rowErr != nil {
			continue
		}
		pages = append(pages, joinRows(rows))
	}

	if totalLen(pages) == 0 {
		plain, plainErr := plainText(doc)
		if plainErr != nil || strings.TrimSpace(plain) == "" {
			return nil, ErrNoText
		}
		return []string{plain}, nil
	}
	return pages, nil
}

// isEncrypted reports whether the trailer references an encryption
// dictionary. Trailers and cross-reference stream dictionaries are never
// compressed, so the key is visible in the raw bytes.
func isEncrypted(data []byte) bool {
	return bytes.Contains(data, []byte("/Encrypt"))
}

// decrypt removes the encryption of a password-protected document.
func decrypt(data []byte, password string) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to decrypt pdf: %w", err)
	}
	return out.Bytes(), nil
}

func joinRows(rows pdf.Rows) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		if line := JoinWords(row.Content); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// JoinWords concatenates the text runs of a row, inserting a space wherever
// the horizontal gap between consecutive runs is wider than a glyph spacing.
func JoinWords(texts []pdf.Text) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			gap := t.X - (prev.X + prev.W)
			if gap > prev.FontSize*wordGapRatio && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return strings.TrimSpace(b.String())
}

func plainText(doc *pdf.Reader) (string, error) {
	rd, err := doc.GetPlainText()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func totalLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
