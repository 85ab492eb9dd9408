// Package command предоставляет интерфейс и реестр команд CLI.
// Пакеты обработчиков экспортируют RegisterCmd, handlers.RegisterAll вызывает
// их при старте, main выбирает обработчик по имени команды.
package command

import (
	"context"

	"github.com/zzaxusl0a/APRS-notify/internal/config"
)

// Handler определяет интерфейс обработчика команды.
type Handler interface {
	// Name возвращает имя команды для регистрации в реестре.
	// Должно соответствовать константам из internal/constants ("serve", "poll").
	Name() string

	// Description возвращает описание команды для вывода в help.
	Description() string

	// Execute выполняет команду с переданным контекстом и конфигурацией.
	Execute(ctx context.Context, cfg *config.Config) error
}
