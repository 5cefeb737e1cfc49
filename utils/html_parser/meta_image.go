package html_parser

import (
	"bytes"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// maxHeadBytes bounds how much of a page is read for metadata discovery.
const maxHeadBytes = 1 << 20

// MetaImage discovers a representative image URL from a page's head metadata.
// Strategies are tried in order: <link rel="image_src">, <meta name="image">,
// OpenGraph og:image, Dublin Core dc.image. Returns "" when nothing matches.
// Only the document head is parsed; the body is discarded.
func MetaImage(r io.Reader) (string, error) {
	head, err := readHead(r)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(head))
	if err != nil {
		return "", err
	}

	if href, ok := doc.Find(`link[rel="image_src"]`).First().Attr("href"); ok && href != "" {
		return href, nil
	}
	if content, ok := doc.Find(`meta[name="image"]`).First().Attr("content"); ok && content != "" {
		return content, nil
	}
	if content, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && content != "" {
		return content, nil
	}
	if content, ok := doc.Find(`meta[name="dc.image"]`).First().Attr("content"); ok && content != "" {
		return content, nil
	}
	return "", nil
}

// readHead reads at most maxHeadBytes, stopping early once </head> is seen.
func readHead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxHeadBytes))
	if err != nil {
		return nil, err
	}
	lower := bytes.ToLower(data)
	if i := bytes.Index(lower, []byte("</head>")); i >= 0 {
		data = data[:i+len("</head>")]
	}
	return data, nil
}
