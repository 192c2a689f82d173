// Package domain содержит доменные модели wuic.
//
// Основные сущности:
//   - Resource (nut) — именованная единица контента (скрипт, стиль, картинка)
//   - ResourceType — тип ресурса (JAVASCRIPT, CSS, HTML, PNG, GIF)
//   - Nut — ресурс, содержимое которого хранится в памяти или загружается лениво
//   - Composite — ресурс, собранный из нескольких частей с одинаковым именем
//
// Версия ресурса — отпечаток содержимого (xxhash), используется для
// построения URL и инвалидации кэшей.
package domain
