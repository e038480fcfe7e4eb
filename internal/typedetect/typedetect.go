// Package typedetect implements the TypeDetector (§4.3): given a fetched
// response it decides a file extension and, for HEIC/HEIF payloads,
// transcodes to JPEG so downstream storage always sees a web-safe format.
package typedetect

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jdeng/goheif"
	"go.uber.org/zap"

	dataimport "github.com/JakeFAU/media-inliner/internal/errors"
)

var extSegmentRe = regexp.MustCompile(`[a-zA-Z]+`)

// contentTypeExt is a small fallback map for hosts that send an accurate
// Content-Type but whose bytes don't sniff cleanly (e.g. truncated bodies).
var contentTypeExt = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/svg+xml":   "svg",
	"image/heic":      "heic",
	"image/heif":      "heif",
	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"audio/mpeg":      "mp3",
	"application/pdf": "pdf",
}

// Detector runs the sniff -> content-type -> url-path fallback chain and the
// HEIC/HEIF transcode step.
type Detector struct {
	log *zap.Logger
}

// New builds a Detector. log may be nil in tests; a nop logger is used then.
func New(log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{log: log}
}

// Detect returns the extension (no leading dot) and the bytes to store,
// transcoding HEIC/HEIF to JPEG on a best-effort basis.
func (d *Detector) Detect(url string, body []byte, header http.Header) (extension string, data []byte) {
	ext := d.sniff(body)
	if ext == "" {
		ext = d.fromContentType(header.Get("Content-Type"))
	}
	if ext == "" {
		ext = d.fromURLPath(url)
	}

	if ext == "heic" || ext == "heif" {
		transcoded, transcodeErr := transcodeHEIC(body)
		if transcodeErr == nil {
			return "jpg", transcoded
		}
		die := dataimport.New("media", url, dataimport.OpTranscode, transcodeErr)
		d.log.Warn("heic transcode failed, keeping original bytes", zap.Error(die))
	}

	return ext, body
}

func (d *Detector) sniff(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	mt := mimetype.Detect(body)
	ext := strings.TrimPrefix(mt.Extension(), ".")
	return ext
}

func (d *Detector) fromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx != -1 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	return contentTypeExt[mediaType]
}

func (d *Detector) fromURLPath(rawURL string) string {
	p := rawURL
	if idx := strings.IndexAny(p, "?#"); idx != -1 {
		p = p[:idx]
	}
	segment := path.Ext(p)
	segment = strings.TrimPrefix(segment, ".")
	return extSegmentRe.FindString(segment)
}

// transcodeHEIC decodes a HEIC/HEIF image and re-encodes it as JPEG. Image
// codecs are known to panic on malformed input, so the decode/encode pair
// runs inside a recover boundary (§10.2) rather than trusting goheif/jpeg to
// only ever fail by returning an error.
func transcodeHEIC(body []byte) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	img, decodeErr := goheif.Decode(bytes.NewReader(body))
	if decodeErr != nil {
		return nil, decodeErr
	}

	var buf bytes.Buffer
	if encodeErr := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); encodeErr != nil {
		return nil, encodeErr
	}
	return buf.Bytes(), nil
}
