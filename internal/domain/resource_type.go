package domain

import (
	"fmt"
	"path"
	"strings"
)

// ResourceType — тип ресурса.
type ResourceType string

const (
	// TypeJavaScript — скрипты.
	TypeJavaScript ResourceType = "JAVASCRIPT"

	// TypeCSS — таблицы стилей.
	TypeCSS ResourceType = "CSS"

	// TypeHTML — html-фрагменты.
	TypeHTML ResourceType = "HTML"

	// TypePNG — изображения PNG.
	TypePNG ResourceType = "PNG"

	// TypeGIF — изображения GIF.
	TypeGIF ResourceType = "GIF"
)

// typeInfo — описание типа ресурса.
type typeInfo struct {
	extensions []string
	mime       string
	text       bool
}

var types = map[ResourceType]typeInfo{
	TypeJavaScript: {extensions: []string{".js"}, mime: "text/javascript", text: true},
	TypeCSS:        {extensions: []string{".css"}, mime: "text/css", text: true},
	TypeHTML:       {extensions: []string{".html", ".htm"}, mime: "text/html", text: true},
	TypePNG:        {extensions: []string{".png"}, mime: "image/png", text: false},
	TypeGIF:        {extensions: []string{".gif"}, mime: "image/gif", text: false},
}

// AllTypes возвращает все известные типы в фиксированном порядке.
func AllTypes() []ResourceType {
	return []ResourceType{TypeJavaScript, TypeCSS, TypeHTML, TypePNG, TypeGIF}
}

// Extensions возвращает расширения файлов для типа.
func (t ResourceType) Extensions() []string {
	return types[t].extensions
}

// MimeType возвращает MIME тип.
func (t ResourceType) MimeType() string {
	if info, ok := types[t]; ok {
		return info.mime
	}
	return "application/octet-stream"
}

// IsText возвращает true для текстовых типов.
func (t ResourceType) IsText() bool {
	return types[t].text
}

// IsValid проверяет, что тип известен.
func (t ResourceType) IsValid() bool {
	_, ok := types[t]
	return ok
}

// TypeForPath определяет тип ресурса по расширению пути.
// Регистр расширения не учитывается.
func TypeForPath(p string) (ResourceType, error) {
	ext := strings.ToLower(path.Ext(p))
	for _, t := range AllTypes() {
		for _, e := range types[t].extensions {
			if e == ext {
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownResourceType, p)
}
