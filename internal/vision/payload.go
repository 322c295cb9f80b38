package vision

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNoImage       = errors.New("no image provided")
	ErrImageTooSmall = errors.New("invalid or too small image data")
	ErrInvalidImage  = errors.New("invalid image data")
)

// MinEncodedLength is the shortest base64 body accepted as an image.
const MinEncodedLength = 100

const defaultMIMEType = "image/jpeg"

var dataURIMimeRe = regexp.MustCompile(`^data:([^;,]+)`)

// Payload is a decoded image upload.
type Payload struct {
	MIMEType string
	Data     []byte
}

// DecodePayload accepts a data URI ("data:image/png;base64,...") or raw base64.
// The MIME type comes from the data URI when present, otherwise it is sniffed
// from the decoded bytes.
func DecodePayload(raw string) (*Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoImage
	}

	mimeType := ""
	encoded := raw
	if strings.HasPrefix(raw, "data:") {
		parts := strings.Split(raw, ",")
		if len(parts) != 2 {
			return nil, ErrInvalidImage
		}
		if m := dataURIMimeRe.FindStringSubmatch(parts[0]); m != nil {
			mimeType = m[1]
		}
		encoded = parts[1]
	}

	if len(encoded) < MinEncodedLength {
		return nil, ErrImageTooSmall
	}

	data, err := decodeBase64(encoded)
	if err != nil {
		return nil, ErrInvalidImage
	}

	if mimeType == "" {
		mimeType = sniffImageType(data)
	}
	return &Payload{MIMEType: mimeType, Data: data}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func sniffImageType(data []byte) string {
	mt := mimetype.Detect(data)
	if strings.HasPrefix(mt.String(), "image/") {
		return mt.String()
	}
	return defaultMIMEType
}
