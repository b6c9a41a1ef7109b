package constants

import (
	"path/filepath"
	"strings"
)

// File formats understood by the text extractor.
const (
	TXT  = "TXT"
	PDF  = "PDF"
	DOCX = "DOCX"
)

// MaxUploadBytesDefault is the server-side upload ceiling (10MB).
const MaxUploadBytesDefault int64 = 10 * 1024 * 1024

// AllowedExtensions maps accepted BRD upload extensions to their format.
// Legacy .doc is routed to the DOCX decoder and fails extraction if it is not OOXML.
var AllowedExtensions = map[string]string{
	"txt":  TXT,
	"pdf":  PDF,
	"doc":  DOCX,
	"docx": DOCX,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the format for a filename's extension, or "" when unsupported.
func MapExtToFormat(filename string) string {
	return AllowedExtensions[NormalizeExt(filepath.Ext(filename))]
}
