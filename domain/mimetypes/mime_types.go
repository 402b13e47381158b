package mimetypes

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"

	ApplicationPDF    MIME = "application/pdf"
	ApplicationZip    MIME = "application/zip"
	ApplicationMSWord MIME = "application/msword"
	ApplicationOLE    MIME = "application/x-ole-storage"
	ApplicationDocx   MIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
)

// Category groups the file kinds participants may share.
type Category string

const (
	Image    Category = "image"
	PDF      Category = "pdf"
	Document Category = "doc"
	Text     Category = "txt"
	Archive  Category = "zip"
)

var extensions = map[string]Category{
	".jpeg": Image,
	".jpg":  Image,
	".png":  Image,
	".gif":  Image,
	".pdf":  PDF,
	".doc":  Document,
	".docx": Document,
	".txt":  Text,
	".zip":  Archive,
}

// Legacy .doc files sniff as a generic OLE container and .docx as a zip.
var accepted = map[Category][]MIME{
	Image:    {ImagePNG, ImageJPEG, ImageGIF},
	PDF:      {ApplicationPDF},
	Document: {ApplicationMSWord, ApplicationOLE, ApplicationDocx, ApplicationZip},
	Text:     {TextPlain},
	Archive:  {ApplicationZip},
}

// CategoryOf resolves the allow-list category from the file extension, case-insensitively.
func CategoryOf(filename string) (Category, bool) {
	c, ok := extensions[strings.ToLower(filepath.Ext(filename))]
	return c, ok
}

// Extension returns the lower-cased extension, dot included.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// Allowed reports whether one of the detected types (a sniffed type and its parents)
// belongs to the category.
func Allowed(category Category, detected ...string) bool {
	return lo.SomeBy(detected, func(d string) bool {
		return lo.SomeBy(accepted[category], func(m MIME) bool {
			_, ok := Matches(d, m)
			return ok
		})
	})
}
