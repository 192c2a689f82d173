// Package cli реализует инструмент командной строки wuic.
//
// # Обзор
//
// CLI — клиентская утилита для сервера wuic. Работает через HTTP
// и не импортирует внутренние пакеты сервера.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует запросы, парсинг ответов
// (DataResponse, ListResponse, ErrorResponse) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	workflows, err := client.ListWorkflows()
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию,
// JSON с флагом --json. Данные выводятся в stdout, сообщения в stderr:
//
//	wuic workflow list --json | jq .
//
// ## Commands
//
//   - workflow: list, show, process [--path], export
//   - tag: list, clear
//
// Каждая группа создаётся фабричной функцией (NewWorkflowCmd, NewTagCmd),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
