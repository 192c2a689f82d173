// Package mq рассылает события инвалидации между узлами через RabbitMQ.
//
// Каждый узел публикует события в fanout exchange wuic.events и читает
// их из собственной эксклюзивной очереди. События, опубликованные самим
// узлом, пропускаются.
//
// Типы сообщений:
//   - heap.changed — ресурсы heap изменились, кэш нужно сбросить
//   - tag.cleared  — конфигурация тега удалена
package mq
