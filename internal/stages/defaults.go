package stages

import "fmt"

// DefaultKind — вид стадии по умолчанию.
type DefaultKind int

const (
	// DefaultCache — кэш в памяти (head стадия).
	DefaultCache DefaultKind = iota

	// DefaultInspector — переписывание ссылок в CSS.
	DefaultInspector

	// DefaultAggregator — объединение текстовых ресурсов.
	DefaultAggregator

	// DefaultCompressor — gzip.
	DefaultCompressor
)

// defaultIDPrefix — префикс ID стадий по умолчанию.
const defaultIDPrefix = "wuic.default."

var defaultKindNames = map[DefaultKind]string{
	DefaultCache:      "cache",
	DefaultInspector:  "css-inspector",
	DefaultAggregator: "aggregator",
	DefaultCompressor: "gzip",
}

// DefaultKinds возвращает все виды по умолчанию.
func DefaultKinds() []DefaultKind {
	return []DefaultKind{DefaultCache, DefaultInspector, DefaultAggregator, DefaultCompressor}
}

// String возвращает имя вида (оно же имя в Registry).
func (k DefaultKind) String() string {
	if name, ok := defaultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DefaultKind(%d)", int(k))
}

// DefaultID возвращает ID, под которым регистрируется стадия по умолчанию.
func DefaultID(k DefaultKind) string {
	return defaultIDPrefix + k.String()
}

// DefaultFactory возвращает фабрику builder'ов для вида.
func DefaultFactory(k DefaultKind) Factory {
	switch k {
	case DefaultCache:
		return NewCacheBuilder
	case DefaultInspector:
		return NewInspectorBuilder
	case DefaultAggregator:
		return NewAggregatorBuilder
	case DefaultCompressor:
		return NewGzipBuilder
	}
	return nil
}
