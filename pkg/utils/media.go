package utils

import (
	"path/filepath"
	"strings"

	"github.com/chatpilot/chatpilot/pkg/bus"
)

var (
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".heic": true, ".heif": true, ".webp": true, ".tiff": true,
	}
	videoExtensions = map[string]bool{
		".mov": true, ".mp4": true, ".m4v": true, ".avi": true, ".3gp": true,
	}
	audioExtensions = map[string]bool{
		".caf": true, ".m4a": true, ".mp3": true, ".wav": true,
		".amr": true, ".aac": true, ".ogg": true, ".opus": true,
	}
)

// IsImageFile reports whether the file looks like an image by MIME type or extension.
func IsImageFile(filename, contentType string) bool {
	return matchKind(filename, contentType, "image/", imageExtensions)
}

// IsVideoFile reports whether the file looks like a video by MIME type or extension.
func IsVideoFile(filename, contentType string) bool {
	return matchKind(filename, contentType, "video/", videoExtensions)
}

// IsAudioFile reports whether the file looks like audio by MIME type or extension.
func IsAudioFile(filename, contentType string) bool {
	return matchKind(filename, contentType, "audio/", audioExtensions)
}

// ClassifyMedia maps an attachment to a media kind. MIME type wins over the
// extension when both are present.
func ClassifyMedia(filename, contentType string) bus.MediaKind {
	if filename == "" && contentType == "" {
		return bus.MediaNone
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return bus.MediaImage
	case strings.HasPrefix(ct, "video/"):
		return bus.MediaVideo
	case strings.HasPrefix(ct, "audio/"):
		return bus.MediaAudio
	}
	switch {
	case IsImageFile(filename, ""):
		return bus.MediaImage
	case IsVideoFile(filename, ""):
		return bus.MediaVideo
	case IsAudioFile(filename, ""):
		return bus.MediaAudio
	}
	return bus.MediaNone
}

// ImageMIMEType guesses the MIME type used when inlining an image as a data URL.
func ImageMIMEType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func matchKind(filename, contentType, prefix string, exts map[string]bool) bool {
	if strings.HasPrefix(strings.ToLower(contentType), prefix) {
		return true
	}
	return exts[strings.ToLower(filepath.Ext(filename))]
}
