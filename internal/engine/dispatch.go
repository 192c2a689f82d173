package engine

import (
	"context"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/telemetry"
)

// RunChains прогоняет ресурсы запроса через цепочки их типов.
//
// Ресурсы делятся на последовательные группы одного типа; каждая группа
// проходит через свою цепочку. Если цепочки для типа нет, ресурсы
// передаются дальше без изменений. Одноимённые результаты разных
// групп объединяются в один составной ресурс.
func RunChains(ctx context.Context, req *Request) ([]domain.Resource, error) {
	logger := telemetry.WithWorkflowID(telemetry.FromContext(ctx), req.WorkflowID())

	var out []domain.Resource
	for _, part := range req.Partitions() {
		rt := part[0].Type()

		chain := req.ChainFor(rt)
		if chain == nil {
			logger.Warn("no chain for resource type, passing resources through",
				"type", rt,
				"resources", len(part),
			)
			out = append(out, part...)
			continue
		}

		result, err := Execute(ctx, chain, req.With(part))
		if err != nil {
			return nil, err
		}
		out = append(out, result...)
	}

	return domain.MergeByName(out), nil
}

// ProcessPath прогоняет запрос через цепочки и возвращает ресурс
// с именем path (nil, если его нет).
func ProcessPath(ctx context.Context, req *Request, path string) (domain.Resource, error) {
	resources, err := RunChains(ctx, req)
	if err != nil {
		return nil, err
	}
	return domain.FindByName(resources, path), nil
}
