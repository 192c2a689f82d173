// Package store содержит хранилища ресурсов.
//
// Хранилище отдаёт ресурсы по пути (glob шаблону в стиле path.Match),
// умеет сохранять результаты (если SupportsSave) и сообщает об
// изменениях подписчикам: scheduler периодически вызывает Poll, который
// сравнивает контрольные суммы наблюдаемых путей.
//
// Файлы пакета:
//   - store.go    — контракт Store, Builder, Listener
//   - registry.go — реестр видов хранилищ для конфигурации
//   - watch.go    — общая логика наблюдения за путями
//   - memory.go   — хранилище в памяти
//   - disk.go     — файловая система
//   - table.go    — таблица nuts (PostgreSQL или SQLite)
//   - bolt.go     — файл bbolt
package store
