package mediatypes

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind is the coarse media category that drives metadata and preview
// extraction for an asset. It is derived once at upload time from the
// filename extension and the client-declared content type, and never
// recomputed from file content.
type Kind string

const (
	// KindImage represents a browser-displayable still image.
	KindImage Kind = "image"
	// KindGif represents an animated GIF, kept separate so the original
	// is always served directly instead of a flattened preview.
	KindGif Kind = "gif"
	// KindRaw represents a camera-RAW file that needs demosaicing before
	// it can be displayed.
	KindRaw Kind = "raw"
	// KindVideo represents a video container.
	KindVideo Kind = "video"
	// KindAudio represents an audio file.
	KindAudio Kind = "audio"
	// KindFile represents any other file type.
	KindFile Kind = "file"
)

// ImageExtensions maps extensions (without dot, lowercase) to whether
// they are treated as still images.
var ImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"bmp":  true,
	"tiff": true,
	"tif":  true,
	"heic": true,
}

// RawExtensions maps extensions to whether they are camera-RAW formats.
var RawExtensions = map[string]bool{
	"dng": true,
}

// VideoExtensions maps extensions to whether they are video containers.
var VideoExtensions = map[string]bool{
	"mp4":  true,
	"mov":  true,
	"mkv":  true,
	"webm": true,
	"avi":  true,
}

// AudioExtensions maps extensions to whether they are audio formats.
var AudioExtensions = map[string]bool{
	"mp3":  true,
	"wav":  true,
	"aac":  true,
	"flac": true,
	"ogg":  true,
	"m4a":  true,
}

// Ext returns the lowercase extension of filename without the leading dot.
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// SniffMime returns the declared content type if present, otherwise the
// MIME type guessed from the filename extension. Returns "" when neither
// is known.
func SniffMime(filename, declared string) string {
	if declared != "" {
		return declared
	}
	mt := mime.TypeByExtension(filepath.Ext(filename))
	// mime.TypeByExtension may append parameters (e.g. "; charset=utf-8")
	// which callers treat as part of the type, matching what a client
	// would have declared.
	return mt
}

// DetectKind classifies a filename plus an optional declared content type
// into a Kind. Classification is total and deterministic: a RAW extension
// wins over any declared type, GIF is split out by extension, a declared
// type resolves by its top-level type, and anything left falls back to
// the static extension tables.
func DetectKind(filename, declared string) Kind {
	ext := Ext(filename)
	if RawExtensions[ext] {
		return KindRaw
	}
	if ext == "gif" {
		return KindGif
	}

	if mt := SniffMime(filename, declared); mt != "" {
		switch {
		case strings.HasPrefix(mt, "image/"):
			return KindImage
		case strings.HasPrefix(mt, "video/"):
			return KindVideo
		case strings.HasPrefix(mt, "audio/"):
			return KindAudio
		}
	}

	switch {
	case ImageExtensions[ext]:
		return KindImage
	case VideoExtensions[ext]:
		return KindVideo
	case AudioExtensions[ext]:
		return KindAudio
	}
	return KindFile
}

// MimeTypes maps extensions (with leading dot) to MIME types for formats
// the Go mime package does not reliably know across platforms.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".dng":  "image/x-adobe-dng",

	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// ContentType returns the MIME type to serve a stored file with, based on
// its extension. Falls back to "application/octet-stream".
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mt, ok := MimeTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
