// Package scheduler периодически опрашивает хранилища на изменения.
//
// Scheduler по cron-расписанию вызывает Poll у всех зарегистрированных
// хранилищ. Хранилище уведомляет heap, наблюдающие изменившиеся пути;
// heap, поколение которых выросло за опрос, публикуются как heap.changed
// (если задан Publisher), чтобы другие узлы сбросили свои кэши.
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Source:    builder,
//	    Publisher: publisher, // опционально
//	    Spec:      "@every 30s",
//	    Logger:    logger,
//	})
//
//	// Дополнительные задачи (например, перечитывание конфигурации)
//	sched.AddJob("@every 1m", "reload", loader.Reload)
//
//	// Блокируется до отмены ctx
//	sched.Run(ctx)
//
// Spec — стандартное cron-выражение (5 или 6 полей, секунды опциональны)
// или дескриптор (@every 30s, @hourly).
package scheduler
