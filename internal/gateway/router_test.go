package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteFile(t *testing.T) {
	const domain = "https://waha1.test"

	cases := []struct {
		name     string
		file     string
		category Category
		path     string
		mime     string
	}{
		{"video", "clip.mp4", CategoryVideo, PathSendVideo, "video/mp4"},
		{"jpeg override", "photo.JPG", CategoryImage, PathSendImage, "image/jpeg"},
		{"jpeg long", "photo.jpeg", CategoryImage, PathSendImage, "image/jpeg"},
		{"png override", "logo.png", CategoryImage, PathSendImage, "image/png"},
		{"synthesized image", "anim.webp", CategoryImage, PathSendImage, "image/webp"},
		{"audio", "voice.ogg", CategoryAudio, PathSendFile, "audio/ogg"},
		{"pdf uppercase", "report.PDF", CategoryDocument, PathSendFile, "application/pdf"},
		{"document", "sheet.xlsx", CategoryDocument, PathSendFile, "application/xlsx"},
		{"unknown", "notes.xyz", CategoryOther, PathSendFile, "application/xyz"},
		{"final dot wins", "archive.tar.mp3", CategoryAudio, PathSendFile, "audio/mp3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := RouteFile(tc.file, domain)
			assert.Equal(t, tc.category, r.Category)
			assert.Equal(t, tc.path, r.Path)
			assert.Equal(t, domain+tc.path, r.URL)
			assert.Equal(t, tc.mime, r.MimeType)
		})
	}
}

func TestRouteFileDeclaredOrder(t *testing.T) {
	seen := map[string]Category{}
	for _, ft := range fileTypes {
		for _, ext := range ft.extensions {
			if prev, ok := seen[ext]; ok {
				t.Fatalf("extension %q declared in both %s and %s", ext, prev, ft.category)
			}
			seen[ext] = ft.category
		}
	}
	assert.Equal(t, CategoryVideo, fileTypes[0].category)
	assert.Equal(t, CategoryDocument, fileTypes[len(fileTypes)-1].category)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "pdf", Extension("a.b.PDF"))
	assert.Equal(t, "readme", Extension("README"))
	assert.Equal(t, "", Extension("trailing."))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://waha1.test/api/sendText", TextURL("https://waha1.test/"))
	assert.Equal(t, "https://waha1.test/api/sendText", TextURL("https://waha1.test"))
}
