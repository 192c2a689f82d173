// Package property приводит значения свойств builder'ов к нужным типам.
//
// Значения приходят из кода или из YAML/JSON конфигурации, поэтому
// числа могут быть int, int64 или float64, а списки — []any.
package property

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotSupported — builder не поддерживает ключ или значение свойства.
var ErrNotSupported = errors.New("property not supported")

// Unsupported возвращает ошибку для неизвестного ключа.
func Unsupported(key string) error {
	return fmt.Errorf("%w: %s", ErrNotSupported, key)
}

// invalid возвращает ошибку для значения неподходящего типа.
func invalid(key string, value any) error {
	return fmt.Errorf("%w: %s=%v (%T)", ErrNotSupported, key, value, value)
}

// String приводит значение к строке.
func String(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", invalid(key, value)
}

// Int приводит значение к int.
func Int(key string, value any) (int, error) {
	switch n := value.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, invalid(key, value)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, invalid(key, value)
		}
		return i, nil
	}
	return 0, invalid(key, value)
}

// Bool приводит значение к bool. Строки "true"/"false" допускаются.
func Bool(key string, value any) (bool, error) {
	switch b := value.(type) {
	case bool:
		return b, nil
	case string:
		v, err := strconv.ParseBool(b)
		if err != nil {
			return false, invalid(key, value)
		}
		return v, nil
	}
	return false, invalid(key, value)
}

// Duration приводит значение к time.Duration.
// Строка разбирается через time.ParseDuration, число — секунды.
func Duration(key string, value any) (time.Duration, error) {
	switch d := value.(type) {
	case time.Duration:
		return d, nil
	case string:
		v, err := time.ParseDuration(d)
		if err != nil {
			return 0, invalid(key, value)
		}
		return v, nil
	}
	sec, err := Int(key, value)
	if err != nil {
		return 0, err
	}
	return time.Duration(sec) * time.Second, nil
}

// Strings приводит значение к []string.
func Strings(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(key, value)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, invalid(key, value)
}
