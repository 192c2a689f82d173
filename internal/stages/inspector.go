package stages

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/engine"
)

// cssURL находит url(...) со ссылкой в кавычках или без.
var cssURL = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+)(['"]?)\s*\)`)

// Inspector переписывает относительные ссылки url(...) в CSS так,
// чтобы они указывали на ресурсы, обслуживаемые тем же workflow:
// contextPath/workflowID/<каталог CSS>/<ссылка>.
type Inspector struct {
	base
}

// NewInspector создаёт активный Inspector.
func NewInspector() *Inspector {
	return &Inspector{base: base{active: true}}
}

// NewInspectorBuilder создаёт builder Inspector.
func NewInspectorBuilder() Builder {
	return newFuncBuilder(func(opts options) engine.Stage {
		return &Inspector{base: base{active: opts.active}}
	})
}

// Types возвращает CSS.
func (s *Inspector) Types() []domain.ResourceType {
	return []domain.ResourceType{domain.TypeCSS}
}

// Kind возвращает StageInspector.
func (s *Inspector) Kind() engine.StageType { return engine.StageInspector }

// Run переписывает ссылки в каждом ресурсе.
func (s *Inspector) Run(ctx context.Context, req *engine.Request) ([]domain.Resource, error) {
	resources := req.Resources()
	out := make([]domain.Resource, 0, len(resources))

	for _, r := range resources {
		data, err := domain.ReadAll(ctx, r)
		if err != nil {
			return nil, err
		}
		prefix := path.Join("/", req.ContextPath(), req.WorkflowID(), path.Dir(r.Name()))
		rewritten := RewriteURLs(string(data), prefix)
		out = append(out, domain.NewNut(r.Name(), r.Type(), []byte(rewritten)))
	}

	return engine.Execute(ctx, s.Next(), req.With(out))
}

// RewriteURLs переписывает относительные ссылки url(...) относительно base.
// Абсолютные пути, схемы (http:, data:) и якоря не меняются.
func RewriteURLs(css, base string) string {
	return cssURL.ReplaceAllStringFunc(css, func(m string) string {
		parts := cssURL.FindStringSubmatch(m)
		quote, ref := parts[1], strings.TrimSpace(parts[2])
		if !isRelative(ref) {
			return m
		}
		return "url(" + quote + path.Join(base, ref) + quote + ")"
	})
}

func isRelative(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "#") {
		return false
	}
	if i := strings.Index(ref, ":"); i > 0 && !strings.ContainsAny(ref[:i], "/.") {
		// схема: http:, https:, data:
		return false
	}
	return true
}
