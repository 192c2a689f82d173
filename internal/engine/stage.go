package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/wuic/internal/domain"
)

// StageType — тип стадии. Порядок констант задаёт порядок стадий в цепочке.
type StageType int

const (
	// StageCache — кэширование результатов (head стадия).
	StageCache StageType = iota

	// StageInspector — анализ и переписывание ссылок внутри ресурсов.
	StageInspector

	// StageMinification — минификация.
	StageMinification

	// StageAggregator — объединение ресурсов одного типа.
	StageAggregator

	// StageBinaryCompression — бинарное сжатие (gzip).
	StageBinaryCompression
)

var stageTypeNames = []string{"CACHE", "INSPECTOR", "MINIFICATION", "AGGREGATOR", "BINARY_COMPRESSION"}

// AllStageTypes возвращает все типы стадий по порядку.
func AllStageTypes() []StageType {
	return []StageType{StageCache, StageInspector, StageMinification, StageAggregator, StageBinaryCompression}
}

// String реализует fmt.Stringer.
func (t StageType) String() string {
	if int(t) >= 0 && int(t) < len(stageTypeNames) {
		return stageTypeNames[t]
	}
	return fmt.Sprintf("StageType(%d)", int(t))
}

// ParseStageType разбирает имя типа стадии (регистр не учитывается).
func ParseStageType(s string) (StageType, error) {
	for i, name := range stageTypeNames {
		if strings.EqualFold(name, s) {
			return StageType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownStageType, s)
}

// BestEffortSkip возвращает типы стадий, которые пропускаются при
// best-effort обработке ресурса данного типа. Для изображений обязателен
// только inspector, текстовые ресурсы обрабатываются без стадий.
func BestEffortSkip(rt domain.ResourceType) []StageType {
	var required []StageType
	switch rt {
	case domain.TypePNG, domain.TypeGIF:
		required = []StageType{StageInspector}
	}

	skip := make([]StageType, 0, len(stageTypeNames))
	for _, t := range AllStageTypes() {
		if !containsStageType(required, t) {
			skip = append(skip, t)
		}
	}
	return skip
}

func containsStageType(list []StageType, t StageType) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

// Stage — звено цепочки обработки ресурсов.
//
// Реализации должны быть указателями: цепочка сравнивает стадии по
// идентичности и хранит связи next/previous внутри самих стадий.
type Stage interface {
	// Types возвращает типы ресурсов, которые обрабатывает стадия.
	Types() []domain.ResourceType

	// Kind возвращает тип стадии.
	Kind() StageType

	// Active возвращает false, если стадия выключена конфигурацией.
	// Выключенная стадия передаёт запрос следующей.
	Active() bool

	// Run обрабатывает ресурсы запроса. Реализация сама решает,
	// передавать ли результат следующей стадии (через Execute).
	Run(ctx context.Context, req *Request) ([]domain.Resource, error)

	SetNext(next Stage)
	Next() Stage
	SetPrevious(prev Stage)
	Previous() Stage
}

// Link — встраиваемая реализация связей цепочки.
type Link struct {
	next Stage
	prev Stage
}

// SetNext задаёт следующую стадию.
func (l *Link) SetNext(next Stage) { l.next = next }

// Next возвращает следующую стадию.
func (l *Link) Next() Stage { return l.next }

// SetPrevious задаёт предыдущую стадию.
func (l *Link) SetPrevious(prev Stage) { l.prev = prev }

// Previous возвращает предыдущую стадию.
func (l *Link) Previous() Stage { return l.prev }

// Execute запускает цепочку, начиная со стадии s.
//
// Стадии, тип которых пропускается запросом, и неактивные стадии
// обходятся. Если стадий не осталось, возвращаются ресурсы запроса.
func Execute(ctx context.Context, s Stage, req *Request) ([]domain.Resource, error) {
	for s != nil && (req.ShouldSkip(s.Kind()) || !s.Active()) {
		s = s.Next()
	}
	if s == nil {
		return req.Resources(), nil
	}
	return s.Run(ctx, req)
}

// HeadStage — стадия, которая целиком управляет обработкой запроса
// (например, кэш). Вызывает RunChains сама, если нужно.
type HeadStage interface {
	Kind() StageType
	Active() bool

	// Process обрабатывает весь запрос.
	Process(ctx context.Context, req *Request) ([]domain.Resource, error)

	// ProcessPath обрабатывает запрос и возвращает ресурс с именем path
	// (nil, если такого нет).
	ProcessPath(ctx context.Context, req *Request, path string) (domain.Resource, error)
}
