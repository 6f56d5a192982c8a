package cachectx

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	mimeCSV      = "text/csv"
	mimeMarkdown = "text/markdown"
	mimeText     = "text/plain"

	maxReferenceBytes = 20 << 20
	// shorter readable text means the extraction missed the content
	minReadableChars = 200
)

var (
	ErrEmptyReference = errors.New("empty reference document")

	noiseSelector = "script,style,noscript,iframe,nav,footer,form"
)

// Document is the reference material attached to a cached context
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Text returns the document as text suitable for a system prompt
func (d *Document) Text() (string, error) {
	if d.MIMEType == mimeCSV {
		return csvToMarkdown(bytes.NewReader(d.Data))
	}
	return string(d.Data), nil
}

// Load reads a local file or fetches a http(s) page.
// HTML pages are cleaned and converted to Markdown.
func Load(ctx context.Context, source string) (*Document, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetch(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyReference
	}
	doc := &Document{Name: filepath.Base(source), MIMEType: mimeByName(source), Data: data}
	if doc.MIMEType == "text/html" {
		return htmlDocument(doc.Name, nil, bytes.NewReader(data))
	}
	return doc, nil
}

func fetch(ctx context.Context, uri string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
	}
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	body := io.LimitReader(resp.Body, maxReferenceBytes)
	if ct == "text/html" || ct == "application/xhtml+xml" {
		return htmlDocument(uri, req.URL, body)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyReference
	}
	if len(ct) == 0 {
		ct = mimeByName(uri)
	}
	return &Document{Name: uri, MIMEType: ct, Data: data}, nil
}

func htmlDocument(name string, pageURL *url.URL, r io.Reader) (*Document, error) {
	text, err := HTMLToMarkdown(r, pageURL)
	if err != nil {
		return nil, err
	}
	if len(text) == 0 {
		return nil, ErrEmptyReference
	}
	return &Document{Name: name, MIMEType: mimeMarkdown, Data: []byte(text)}, nil
}

// HTMLToMarkdown keeps the readable part of a page, pageURL is optional.
// The article found by readability is preferred, else main or body without noise.
func HTMLToMarkdown(r io.Reader, pageURL *url.URL) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	converter := md.NewConverter("", true, nil)
	var text string
	if html, ok := readableHTML(data, pageURL); ok {
		if text, err = converter.ConvertString(html); err == nil {
			text = strings.TrimSpace(text)
		}
	}
	if len([]rune(text)) < minReadableChars {
		html, err := bareHTML(doc)
		if err != nil {
			return "", err
		}
		if text, err = converter.ConvertString(html); err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
	}
	if len(title) > 0 && len(text) > 0 && !strings.HasPrefix(text, "# "+title) {
		text = "# " + title + "\n\n" + text
	}
	return text, nil
}

// readableHTML returns the article content detected by readability
func readableHTML(data []byte, pageURL *url.URL) (string, bool) {
	if pageURL == nil {
		pageURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}
	}
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil || article.Node == nil {
		logger().Debugw("readability miss", "url", pageURL, "err", err)
		return "", false
	}
	html, err := goquery.NewDocumentFromNode(article.Node).Html()
	if err != nil || len(strings.TrimSpace(html)) == 0 {
		return "", false
	}
	return html, true
}

func bareHTML(doc *goquery.Document) (string, error) {
	doc.Find(noiseSelector).Remove()
	sel := doc.Find("main").First()
	if sel.Length() == 0 {
		sel = doc.Find("body").First()
	}
	return sel.Html()
}

func mimeByName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return mimeCSV
	case ".md", ".markdown":
		return mimeMarkdown
	case ".txt", "":
		return mimeText
	}
	if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(name))); err == nil {
		return mt
	}
	return mimeText
}

// csvToMarkdown renders each row as a section, the first column is the heading
func csvToMarkdown(r io.Reader) (string, error) {
	rd := csv.NewReader(r)
	rd.FieldsPerRecord = -1
	heads, err := rd.Read()
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	var idx int
	for {
		row, err := rd.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("invalid csv row #%d: %w", idx+1, err)
		}
		idx++
		if len(row) == 0 || len(strings.TrimSpace(row[0])) == 0 {
			continue
		}
		buf.WriteString("### " + strings.TrimSpace(row[0]) + "\n")
		for i := 1; i < len(row) && i < len(heads); i++ {
			if v := strings.TrimSpace(row[i]); len(v) > 0 {
				buf.WriteString("- " + strings.TrimSpace(heads[i]) + ": " + v + "\n")
			}
		}
		buf.WriteString("\n")
	}
	if idx == 0 {
		return "", ErrEmptyReference
	}
	return strings.TrimSpace(buf.String()), nil
}
