package frontend

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateFS returns the embedded page templates
func TemplateFS() fs.FS {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
