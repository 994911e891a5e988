package ingestion

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// ContentTypeDetector は教材の種別（MIMEタイプ）を判定する。
type ContentTypeDetector struct{}

// NewContentTypeDetector は ContentTypeDetector を生成する。
func NewContentTypeDetector() *ContentTypeDetector {
	return &ContentTypeDetector{}
}

// DetectContentType はパス（またはURL）と内容からMIMEタイプを判定する。
func (d *ContentTypeDetector) DetectContentType(path string, content []byte) string {
	filename := filepath.Base(strings.SplitN(path, "?", 2)[0])
	language := enry.GetLanguage(filename, content)

	if mime := languageToMimeType(language); mime != "" {
		return mime
	}

	if len(content) > 0 {
		detected := http.DetectContentType(content)
		if idx := strings.Index(detected, ";"); idx != -1 {
			detected = detected[:idx]
		}
		return strings.TrimSpace(detected)
	}

	return "text/plain"
}

// IsText はチャンク化できるテキスト系のMIMEタイプかを返す
func (d *ContentTypeDetector) IsText(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") || contentType == "application/json"
}

func languageToMimeType(language string) string {
	mapping := map[string]string{
		"Markdown":         "text/markdown",
		"HTML":             "text/html",
		"TeX":              "text/x-tex",
		"reStructuredText": "text/x-rst",
		"AsciiDoc":         "text/x-asciidoc",
		"Org":              "text/x-org",
		"Text":             "text/plain",
		"JSON":             "application/json",
		"YAML":             "text/x-yaml",
		"XML":              "text/xml",
	}
	if mime, ok := mapping[language]; ok {
		return mime
	}
	return ""
}
