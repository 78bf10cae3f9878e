package validation

import (
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"

	"genstudio/internal/domain"
)

const (
	MaxPromptLength = 500
	MaxImageBytes   = 10 << 20
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// Prompt normalizes a prompt to NFC, trims it and enforces the length bounds.
// Length is counted in code points.
func Prompt(raw string) (string, error) {
	prompt := strings.TrimSpace(norm.NFC.String(raw))
	if prompt == "" {
		return "", ErrPromptRequired
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return "", ErrPromptTooLong
	}
	return prompt, nil
}

// Style checks raw against the supported styles.
func Style(raw string) (domain.Style, error) {
	style, ok := domain.ParseStyle(strings.TrimSpace(raw))
	if !ok {
		names := make([]string, 0, len(domain.Styles))
		for _, s := range domain.Styles {
			names = append(names, string(s))
		}
		return "", newError("style", "Style must be one of: %s", strings.Join(names, ", "))
	}
	return style, nil
}

// Image describes an accepted upload.
type Image struct {
	MIME      string
	Extension string
	Size      int64
}

// UploadedImage validates a multipart image. The declared content type and
// the sniffed content must both be JPEG or PNG, and the size must not exceed
// maxBytes (MaxImageBytes when zero). The file is rewound before returning.
func UploadedImage(header *multipart.FileHeader, file io.ReadSeeker, maxBytes int64) (Image, error) {
	if header == nil || file == nil {
		return Image{}, ErrImageRequired
	}
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}

	declared, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		return Image{}, ErrInvalidImageType
	}
	if _, ok := allowedImageTypes[declared]; !ok {
		return Image{}, ErrInvalidImageType
	}

	if header.Size > maxBytes {
		return Image{}, ErrImageTooLarge
	}

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return Image{}, ErrInvalidImageType
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return Image{}, err
	}
	ext, ok := allowedImageTypes[detected.String()]
	if !ok || detected.String() != declared {
		return Image{}, ErrInvalidImageType
	}

	return Image{MIME: detected.String(), Extension: ext, Size: header.Size}, nil
}
