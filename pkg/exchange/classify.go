package exchange

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// BodyKind classifies a body by its declared content type and its bytes.
type BodyKind string

const (
	BodyEmpty     BodyKind = "empty"
	BodyText      BodyKind = "text"
	BodyJSON      BodyKind = "json"
	BodyForm      BodyKind = "form"
	BodyMultipart BodyKind = "multipart"
	BodyBinary    BodyKind = "binary"
)

// Classify detects the kind of body. Text requires either valid UTF-8 or a
// declared charset that names a known encoding.
func Classify(contentType string, body []byte) BodyKind {
	if len(body) == 0 {
		return BodyEmpty
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return BodyMultipart
	case mediaType == "application/x-www-form-urlencoded":
		return BodyForm
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		if utf8.Valid(body) {
			return BodyJSON
		}
		return BodyBinary
	}

	if charset := params["charset"]; charset != "" && !strings.EqualFold(charset, "utf-8") {
		if _, err := htmlindex.Get(charset); err == nil && isTextual(mediaType) {
			return BodyText
		}
	}

	if utf8.Valid(body) && (mediaType == "" || isTextual(mediaType)) {
		return BodyText
	}
	return BodyBinary
}

func isTextual(mediaType string) bool {
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case strings.HasSuffix(mediaType, "+xml"), mediaType == "application/xml",
		mediaType == "application/javascript", mediaType == "application/graphql":
		return true
	}
	return false
}
