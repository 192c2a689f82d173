package engine

import (
	"reflect"
	"sort"
)

// Compose собирает одну цепочку из стадий и уже связанных цепочек.
//
// Алгоритм:
//  1. nil-стадии отбрасываются; если ничего не осталось — ErrEmptyChain
//  2. каждая переданная стадия раскрывается по ссылкам Next в плоский список
//  3. список стабильно сортируется по Kind
//  4. для каждого конкретного типа (reflect.Type) остаётся один экземпляр:
//     самый правый в отсортированном списке, на позиции первого вхождения
//  5. стадии заново связываются, возвращается голова
//
// Так пользователь может переопределить стадию по умолчанию, просто
// добавив свой экземпляр того же типа в конец.
func Compose(stages ...Stage) (Stage, error) {
	flat := flatten(stages)
	if len(flat) == 0 {
		return nil, ErrEmptyChain
	}

	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Kind() < flat[j].Kind()
	})

	kept := make([]Stage, 0, len(flat))
	keptTypes := make(map[reflect.Type]bool, len(flat))

	for _, candidate := range flat {
		rt := reflect.TypeOf(candidate)
		if keptTypes[rt] {
			continue
		}
		keptTypes[rt] = true
		kept = append(kept, rightmost(flat, rt))
	}

	relink(kept)
	return kept[0], nil
}

// flatten раскрывает цепочки в плоский список в порядке обнаружения.
// Повторно встреченная стадия не добавляется (защита от циклов).
func flatten(stages []Stage) []Stage {
	var flat []Stage
	seen := make(map[Stage]bool)

	for _, s := range stages {
		for cur := s; !isNilStage(cur); cur = cur.Next() {
			if seen[cur] {
				break
			}
			seen[cur] = true
			flat = append(flat, cur)
		}
	}
	return flat
}

// rightmost возвращает последний экземпляр типа rt в списке.
func rightmost(flat []Stage, rt reflect.Type) Stage {
	for i := len(flat) - 1; i >= 0; i-- {
		if reflect.TypeOf(flat[i]) == rt {
			return flat[i]
		}
	}
	return nil
}

// relink связывает стадии в порядке списка.
func relink(stages []Stage) {
	for i, s := range stages {
		if i == 0 {
			s.SetPrevious(nil)
		} else {
			s.SetPrevious(stages[i-1])
			stages[i-1].SetNext(s)
		}
	}
	stages[len(stages)-1].SetNext(nil)
}

func isNilStage(s Stage) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// Stages возвращает стадии цепочки начиная с head.
func Stages(head Stage) []Stage {
	var out []Stage
	seen := make(map[Stage]bool)
	for cur := head; !isNilStage(cur) && !seen[cur]; cur = cur.Next() {
		seen[cur] = true
		out = append(out, cur)
	}
	return out
}
