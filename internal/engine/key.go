package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shaiso/wuic/internal/domain"
)

// keySeparator не может встретиться в имени ресурса.
const keySeparator = "\x00"

// Key — ключ запроса: workflow ID и множество имён ресурсов.
//
// Два ключа равны, если совпадают workflow ID и множества имён
// (порядок ресурсов не важен). Key сравним через == и пригоден
// как ключ map.
type Key struct {
	workflowID string
	names      string
}

// NewKey строит ключ для workflow и списка ресурсов.
// Возвращает ErrUnnamedResource, если у ресурса пустое имя.
func NewKey(workflowID string, resources []domain.Resource) (Key, error) {
	set := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		name := r.Name()
		if name == "" {
			return Key{}, fmt.Errorf("%w: workflow %s", ErrUnnamedResource, workflowID)
		}
		set[name] = struct{}{}
	}

	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)

	return Key{workflowID: workflowID, names: strings.Join(names, keySeparator)}, nil
}

// WorkflowID возвращает workflow ID ключа.
func (k Key) WorkflowID() string { return k.workflowID }

// Names возвращает отсортированные имена ресурсов.
func (k Key) Names() []string {
	if k.names == "" {
		return nil
	}
	return strings.Split(k.names, keySeparator)
}

// String реализует fmt.Stringer.
func (k Key) String() string {
	return k.workflowID + " / [" + strings.Join(k.Names(), ", ") + "]"
}
