// Package loader читает конфигурацию конвейера из YAML или JSON файла
// и регистрирует её в pipeline.Builder под отдельным тегом.
//
// Формат:
//
//	stores:
//	  - id: dao
//	    kind: disk
//	    properties: {root: ./web}
//	stages:
//	  - id: gzip-best
//	    kind: gzip
//	    properties: {level: 9}
//	heaps:
//	  - id: app
//	    store: dao
//	    paths: [js/*.js]
//	templates:
//	  - id: tpl
//	    include_defaults: true
//	    exclude: [gzip]
//	workflows:
//	  - prefix: app-
//	    for_each_heap: true
//	    heap_pattern: app.*
//	    template: tpl
//	filters:
//	  - '\.min\.js$'
//	aliases:
//	  main: app-app
//
// Reload перечитывает файл и применяет его заново, только если
// содержимое изменилось. Применение очищает тег целиком.
package loader
