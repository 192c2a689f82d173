package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/wuic/internal/domain"
)

// Тестовые стадии разных конкретных типов.

type cacheStage struct {
	Link
	name string
}

func (s *cacheStage) Types() []domain.ResourceType { return domain.AllTypes() }
func (s *cacheStage) Kind() StageType              { return StageCache }
func (s *cacheStage) Active() bool                 { return true }
func (s *cacheStage) Run(ctx context.Context, req *Request) ([]domain.Resource, error) {
	return Execute(ctx, s.Next(), req)
}

type upperStage struct {
	Link
	name     string
	inactive bool
}

func (s *upperStage) Types() []domain.ResourceType { return []domain.ResourceType{domain.TypeJavaScript} }
func (s *upperStage) Kind() StageType              { return StageInspector }
func (s *upperStage) Active() bool                 { return !s.inactive }

// Run переводит содержимое в верхний регистр.
func (s *upperStage) Run(ctx context.Context, req *Request) ([]domain.Resource, error) {
	var out []domain.Resource
	for _, r := range req.Resources() {
		data, err := domain.ReadAll(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.NewNut(r.Name(), r.Type(), []byte(strings.ToUpper(string(data)))))
	}
	return Execute(ctx, s.Next(), req.With(out))
}

type joinStage struct {
	Link
	name string
}

func (s *joinStage) Types() []domain.ResourceType { return []domain.ResourceType{domain.TypeJavaScript} }
func (s *joinStage) Kind() StageType              { return StageAggregator }
func (s *joinStage) Active() bool                 { return true }

// Run объединяет все ресурсы в один "all.js".
func (s *joinStage) Run(ctx context.Context, req *Request) ([]domain.Resource, error) {
	var parts []string
	for _, r := range req.Resources() {
		data, err := domain.ReadAll(ctx, r)
		if err != nil {
			return nil, err
		}
		parts = append(parts, string(data))
	}
	joined := domain.NewNut("all.js", domain.TypeJavaScript, []byte(strings.Join(parts, ";")))
	return Execute(ctx, s.Next(), req.With([]domain.Resource{joined}))
}

type staticGroup struct {
	id        string
	resources []domain.Resource
	err       error
}

func (g *staticGroup) ID() string { return g.id }
func (g *staticGroup) Resources(context.Context) ([]domain.Resource, error) {
	return g.resources, g.err
}

func chainNames(head Stage) []string {
	var names []string
	for _, s := range Stages(head) {
		switch v := s.(type) {
		case *cacheStage:
			names = append(names, v.name)
		case *upperStage:
			names = append(names, v.name)
		case *joinStage:
			names = append(names, v.name)
		}
	}
	return names
}

// Compose Tests

func TestCompose_ReplacesSameType(t *testing.T) {
	a := &upperStage{name: "A"}
	b := &joinStage{name: "B"}
	a2 := &upperStage{name: "A'"}

	head, err := Compose(a, b, a2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"A'", "B"}, chainNames(head)); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
	if head.Previous() != nil {
		t.Error("head should have no previous stage")
	}
	if head.Next().Previous() != head {
		t.Error("second stage should point back to head")
	}
}

func TestCompose_SortsByKind(t *testing.T) {
	head, err := Compose(&joinStage{name: "join"}, &upperStage{name: "upper"}, &cacheStage{name: "cache"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"cache", "upper", "join"}
	if diff := cmp.Diff(want, chainNames(head)); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_FlattensLinkedChains(t *testing.T) {
	first, err := Compose(&cacheStage{name: "cache"}, &joinStage{name: "join"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Уже связанная цепочка + одиночная стадия, переопределяющая join
	head, err := Compose(first, &upperStage{name: "upper"}, &joinStage{name: "join2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"cache", "upper", "join2"}
	if diff := cmp.Diff(want, chainNames(head)); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_Empty(t *testing.T) {
	var typedNil *upperStage

	tests := []struct {
		name   string
		stages []Stage
	}{
		{"no stages", nil},
		{"nils", []Stage{nil, nil}},
		{"typed nil", []Stage{typedNil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(tt.stages...)
			if !errors.Is(err, ErrEmptyChain) {
				t.Errorf("expected ErrEmptyChain, got %v", err)
			}
		})
	}
}

func TestCompose_SingleStage(t *testing.T) {
	s := &joinStage{name: "only"}
	s.SetNext(s) // цикл не должен зациклить сборку

	head, err := Compose(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if head != s || head.Next() != nil || head.Previous() != nil {
		t.Error("single stage should be returned unlinked")
	}
}

// Key Tests

func TestKey_SetEquality(t *testing.T) {
	r1 := domain.NewNut("a.js", domain.TypeJavaScript, []byte("a"))
	r2 := domain.NewNut("b.js", domain.TypeJavaScript, []byte("b"))

	k1, err := NewKey("wf", []domain.Resource{r1, r2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k2, err := NewKey("wf", []domain.Resource{r2, r1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k1 != k2 {
		t.Errorf("keys should be equal: %s vs %s", k1, k2)
	}

	k3, _ := NewKey("other", []domain.Resource{r1, r2})
	if k1 == k3 {
		t.Error("keys with different workflow should differ")
	}

	// Подмножество — другой ключ
	k4, _ := NewKey("wf", []domain.Resource{r1})
	if k1 == k4 {
		t.Error("subset should produce a different key")
	}

	m := map[Key]int{k1: 1}
	if m[k2] != 1 {
		t.Error("equal keys should address the same map entry")
	}
}

func TestKey_UnnamedResource(t *testing.T) {
	r := domain.NewNut("", domain.TypeCSS, nil)
	_, err := NewKey("wf", []domain.Resource{r})
	if !errors.Is(err, ErrUnnamedResource) {
		t.Errorf("expected ErrUnnamedResource, got %v", err)
	}
}

// Request Tests

func TestRequestBuilder_CopiesResources(t *testing.T) {
	resources := []domain.Resource{
		domain.NewNut("a.js", domain.TypeJavaScript, []byte("a")),
	}

	req, err := NewRequestBuilder("wf", &staticGroup{id: "heap"}).
		Resources(resources).
		Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resources[0] = domain.NewNut("changed.js", domain.TypeJavaScript, nil)
	if got := req.Resources()[0].Name(); got != "a.js" {
		t.Errorf("request should not alias caller slice, got %s", got)
	}

	out := req.Resources()
	out[0] = nil
	if req.Resources()[0] == nil {
		t.Error("Resources should return a copy")
	}
}

func TestRequestBuilder_FetchesFromGroup(t *testing.T) {
	group := &staticGroup{id: "heap", resources: []domain.Resource{
		domain.NewNut("a.js", domain.TypeJavaScript, []byte("a")),
		domain.NewNut("b.js", domain.TypeJavaScript, []byte("b")),
	}}

	req, err := NewRequestBuilder("wf", group).ContextPath("/res").Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Resources()) != 2 {
		t.Errorf("expected 2 resources, got %d", len(req.Resources()))
	}
	if req.ContextPath() != "/res" {
		t.Errorf("expected /res, got %s", req.ContextPath())
	}

	// Ошибка хранилища пробрасывается
	fetchErr := errors.New("disk gone")
	_, err = NewRequestBuilder("wf", &staticGroup{id: "bad", err: fetchErr}).Build(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Errorf("expected store error, got %v", err)
	}

	_, err = NewRequestBuilder("wf", nil).Build(context.Background())
	if !errors.Is(err, ErrNoHeap) {
		t.Errorf("expected ErrNoHeap, got %v", err)
	}
}

func TestRequest_Skip(t *testing.T) {
	req, err := NewRequestBuilder("wf", &staticGroup{id: "heap"}).
		Skip(StageAggregator).
		Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !req.ShouldSkip(StageAggregator) {
		t.Error("aggregator should be skipped")
	}
	if req.ShouldSkip(StageInspector) {
		t.Error("inspector should not be skipped")
	}

	derived := req.AlsoSkip(StageInspector, StageAggregator)
	if !derived.ShouldSkip(StageInspector) {
		t.Error("derived request should skip inspector")
	}
	if req.ShouldSkip(StageInspector) {
		t.Error("original request should stay unchanged")
	}
	if len(derived.Skipped()) != 2 {
		t.Errorf("expected 2 skipped types, got %v", derived.Skipped())
	}
}

func TestRequest_Partitions(t *testing.T) {
	js1 := domain.NewNut("a.js", domain.TypeJavaScript, nil)
	css := domain.NewNut("a.css", domain.TypeCSS, nil)
	js2 := domain.NewNut("b.js", domain.TypeJavaScript, nil)

	req, _ := NewRequestBuilder("wf", &staticGroup{id: "heap"}).
		Resources([]domain.Resource{js1, js1, css, js2}).
		Build(context.Background())

	parts := req.Partitions()
	if len(parts) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(parts))
	}
	if len(parts[0]) != 2 || parts[1][0] != css || parts[2][0] != js2 {
		t.Errorf("unexpected partitions: %v", parts)
	}
}

// Execute / RunChains Tests

func TestExecute_SkipsInactiveAndSkipped(t *testing.T) {
	upper := &upperStage{name: "upper", inactive: true}
	join := &joinStage{name: "join"}
	head, _ := Compose(upper, join)

	resources := []domain.Resource{
		domain.NewNut("a.js", domain.TypeJavaScript, []byte("a")),
		domain.NewNut("b.js", domain.TypeJavaScript, []byte("b")),
	}

	req, _ := NewRequestBuilder("wf", &staticGroup{id: "heap"}).
		Resources(resources).
		Build(context.Background())

	out, err := Execute(context.Background(), head, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := domain.ReadAll(context.Background(), out[0])
	if string(data) != "a;b" {
		t.Errorf("expected a;b, got %s", data)
	}

	// Пропуск агрегатора: ресурсы проходят как есть
	out, err = Execute(context.Background(), head, req.AlsoSkip(StageAggregator))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("expected 2 resources, got %d", len(out))
	}
}

func TestRunChains(t *testing.T) {
	head, _ := Compose(&upperStage{name: "upper"})

	js := domain.NewNut("a.js", domain.TypeJavaScript, []byte("x"))
	css := domain.NewNut("a.css", domain.TypeCSS, []byte("y"))

	req, _ := NewRequestBuilder("wf", &staticGroup{id: "heap"}).
		Resources([]domain.Resource{js, css}).
		Chains(map[domain.ResourceType]Stage{domain.TypeJavaScript: head}).
		Build(context.Background())

	out, err := RunChains(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a.js", "a.css"}, domain.Names(out)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	data, _ := domain.ReadAll(context.Background(), out[0])
	if string(data) != "X" {
		t.Errorf("expected X, got %s", data)
	}
	// CSS без цепочки проходит без изменений
	if out[1] != css {
		t.Error("css resource should pass through unchanged")
	}
}

func TestRunChains_MergesSameNames(t *testing.T) {
	join, _ := Compose(&joinStage{name: "join"})

	js1 := domain.NewNut("a.js", domain.TypeJavaScript, []byte("1"))
	css := domain.NewNut("a.css", domain.TypeCSS, []byte("c"))
	js2 := domain.NewNut("b.js", domain.TypeJavaScript, []byte("2"))

	req, _ := NewRequestBuilder("wf", &staticGroup{id: "heap"}).
		Resources([]domain.Resource{js1, css, js2}).
		Chains(map[domain.ResourceType]Stage{domain.TypeJavaScript: join}).
		Build(context.Background())

	out, err := RunChains(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Две JS группы дают два all.js, которые объединяются в один
	if diff := cmp.Diff([]string{"all.js", "a.css"}, domain.Names(out)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	composite, ok := out[0].(*domain.Composite)
	if !ok {
		t.Fatalf("expected composite, got %T", out[0])
	}
	if len(composite.Parts()) != 2 {
		t.Errorf("expected 2 parts, got %d", len(composite.Parts()))
	}

	res, err := ProcessPath(context.Background(), req, "a.css")
	if err != nil || res == nil {
		t.Errorf("expected a.css, got %v, %v", res, err)
	}
}

func TestParseStageType(t *testing.T) {
	for _, st := range AllStageTypes() {
		got, err := ParseStageType(strings.ToLower(st.String()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != st {
			t.Errorf("expected %s, got %s", st, got)
		}
	}

	if _, err := ParseStageType("sprite"); !errors.Is(err, ErrUnknownStageType) {
		t.Errorf("expected ErrUnknownStageType, got %v", err)
	}
}

func TestBestEffortSkip(t *testing.T) {
	png := BestEffortSkip(domain.TypePNG)
	if containsStageType(png, StageInspector) {
		t.Error("png should keep inspector")
	}
	if len(png) != len(AllStageTypes())-1 {
		t.Errorf("unexpected skip set for png: %v", png)
	}

	if js := BestEffortSkip(domain.TypeJavaScript); len(js) != len(AllStageTypes()) {
		t.Errorf("javascript should skip every stage type: %v", js)
	}
}
