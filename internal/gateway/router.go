// Package gateway talks to the per-session messaging gateway servers.
package gateway

import (
	"slices"
	"strings"
)

// Gateway API paths.
const (
	PathSendText  = "/api/sendText"
	PathSendImage = "/api/sendImage"
	PathSendVideo = "/api/sendVideo"
	PathSendFile  = "/api/sendFile"
)

// Category classifies an attachment by extension.
type Category string

const (
	CategoryVideo    Category = "video"
	CategoryImage    Category = "image"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryOther    Category = "other"
)

type fileType struct {
	category   Category
	extensions []string
	path       string
	mimePrefix string
	overrides  map[string]string
}

// fileTypes is scanned in order; the first category containing the extension wins.
var fileTypes = []fileType{
	{
		category:   CategoryVideo,
		extensions: []string{"mp4", "avi", "mov", "wmv", "flv", "mkv", "webm", "3gp"},
		path:       PathSendVideo,
		mimePrefix: "video/",
	},
	{
		category:   CategoryImage,
		extensions: []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "ico", "svg", "webp"},
		path:       PathSendImage,
		mimePrefix: "image/",
		overrides:  map[string]string{"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png"},
	},
	{
		category:   CategoryAudio,
		extensions: []string{"mp3", "wav", "ogg", "m4a", "flac", "aac"},
		path:       PathSendFile,
		mimePrefix: "audio/",
	},
	{
		category:   CategoryDocument,
		extensions: []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "csv", "rtf", "odt"},
		path:       PathSendFile,
		mimePrefix: "application/",
		overrides:  map[string]string{"pdf": "application/pdf"},
	},
}

// Route is the resolved destination for an attachment.
type Route struct {
	Category  Category
	Extension string
	Path      string
	URL       string
	MimeType  string
}

// RouteFile picks the send endpoint and mime type for fileName on the server at domain.
// Unknown extensions fall back to the generic file endpoint with an application/ mime type.
func RouteFile(fileName, domain string) Route {
	ext := Extension(fileName)
	for _, ft := range fileTypes {
		if !slices.Contains(ft.extensions, ext) {
			continue
		}
		mime, ok := ft.overrides[ext]
		if !ok {
			mime = ft.mimePrefix + ext
		}
		return Route{
			Category:  ft.category,
			Extension: ext,
			Path:      ft.path,
			URL:       JoinURL(domain, ft.path),
			MimeType:  mime,
		}
	}
	return Route{
		Category:  CategoryOther,
		Extension: ext,
		Path:      PathSendFile,
		URL:       JoinURL(domain, PathSendFile),
		MimeType:  "application/" + ext,
	}
}

// TextURL is the text-send endpoint on the server at domain.
func TextURL(domain string) string {
	return JoinURL(domain, PathSendText)
}

// Extension returns the lowercased text after the final dot. A name without a dot is its own
// extension.
func Extension(fileName string) string {
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 {
		fileName = fileName[i+1:]
	}
	return strings.ToLower(fileName)
}

// JoinURL appends path to domain without doubling the slash.
func JoinURL(domain, path string) string {
	return strings.TrimRight(domain, "/") + path
}
