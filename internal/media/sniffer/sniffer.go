package sniffer

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strings"
)

// MediaType is an image format accepted for player photos and team logos.
type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeAVIF MediaType = "avif"
	TypeSVG  MediaType = "svg"
)

// HeadSize is the number of leading bytes DetectHead needs.
const HeadSize = 512

var (
	ErrUnknownType  = errors.New("unknown media type")
	ErrTypeMismatch = errors.New("declared content type does not match content")
)

type Result struct {
	Type MediaType
	MIME string
}

// Extension is the file extension used in object keys.
func (r Result) Extension() string {
	if r.Type == TypeJPEG {
		return "jpg"
	}
	return string(r.Type)
}

// Detect identifies data by its magic bytes and checks it against the declared MIME type, if any.
func Detect(data []byte, declared string) (Result, error) {
	head := data
	if len(head) > HeadSize {
		head = head[:HeadSize]
	}

	result, err := DetectHead(head)
	if err != nil {
		return Result{}, err
	}

	if declared != "" && declared != "application/octet-stream" && !sameMIME(declared, result.MIME) {
		return Result{}, ErrTypeMismatch
	}
	return result, nil
}

func DetectHead(head []byte) (Result, error) {
	switch {
	case len(head) == 0:
		return Result{}, ErrUnknownType
	case isJPEG(head):
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	case isPNG(head):
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	case isGIF(head):
		return Result{Type: TypeGIF, MIME: "image/gif"}, nil
	case isWEBP(head):
		return Result{Type: TypeWEBP, MIME: "image/webp"}, nil
	case isAVIF(head):
		return Result{Type: TypeAVIF, MIME: "image/avif"}, nil
	case isSVG(head):
		return Result{Type: TypeSVG, MIME: "image/svg+xml"}, nil
	}
	return Result{}, ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func isPNG(head []byte) bool {
	return bytes.HasPrefix(head, pngMagic)
}

func isGIF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a"))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP"))
}

func isAVIF(head []byte) bool {
	return len(head) >= 12 && string(head[4:8]) == "ftyp" && bytes.Contains(head[8:], []byte("avif"))
}

func isSVG(head []byte) bool {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")))
	lower := bytes.ToLower(trimmed)
	if bytes.HasPrefix(lower, []byte("<svg")) {
		return true
	}
	return bytes.HasPrefix(lower, []byte("<?xml")) && bytes.Contains(lower, []byte("<svg"))
}

// MimeTypeFromHTTP returns the media type of a multipart part header without parameters.
func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return mediaType
}

func sameMIME(declared, detected string) bool {
	declared = strings.ToLower(declared)
	if declared == detected {
		return true
	}
	return declared == "image/jpg" && detected == "image/jpeg"
}
