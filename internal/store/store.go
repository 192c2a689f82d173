package store

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/shaiso/wuic/internal/domain"
)

// Store — хранилище ресурсов.
type Store interface {
	// Fetch возвращает ресурсы, имена которых соответствуют path.
	// Для точного пути без совпадений возвращается ErrNotFound.
	Fetch(ctx context.Context, path string) ([]domain.Resource, error)

	// SupportsSave сообщает, можно ли сохранять ресурсы.
	SupportsSave() bool

	// Save сохраняет ресурс под его именем.
	Save(ctx context.Context, r domain.Resource) error

	// Shutdown освобождает ресурсы хранилища. Повторный вызов безопасен.
	Shutdown()

	// Observe подписывает listener на изменения ресурсов по path.
	// Возвращённая функция отменяет подписку.
	Observe(path string, l Listener) (func(), error)

	// Checksum возвращает контрольную сумму ресурсов по path.
	Checksum(ctx context.Context, path string) (string, error)

	// Poll проверяет наблюдаемые пути и уведомляет подписчиков
	// об изменившихся.
	Poll(ctx context.Context) error
}

// Listener получает путь, ресурсы которого изменились.
type Listener func(path string)

// Builder строит хранилище из свойств.
type Builder interface {
	// Configure задаёт свойство. Неизвестный ключ или значение
	// неподходящего типа — property.ErrNotSupported.
	Configure(key string, value any) error

	// Build создаёт хранилище.
	Build() (Store, error)
}

// isPattern сообщает, содержит ли путь glob символы.
func isPattern(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// match сравнивает имя ресурса с путём.
func match(pattern, name string) bool {
	if !isPattern(pattern) {
		return pattern == name
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// filterNames возвращает отсортированные имена, подходящие под pattern.
func filterNames(pattern string, names []string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, pattern, err)
	}

	var out []string
	for _, n := range names {
		if match(pattern, n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)

	if len(out) == 0 && !isPattern(pattern) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pattern)
	}
	return out, nil
}

// checksumOf строит контрольную сумму из пар имя/версия.
func checksumOf(ctx context.Context, resources []domain.Resource) (string, error) {
	var b strings.Builder
	for _, r := range resources {
		v, err := r.Version(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(r.Name())
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return domain.Fingerprint([]byte(b.String())), nil
}

// cleanName проверяет имя сохраняемого ресурса.
func cleanName(name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, name)
	}
	return clean, nil
}
