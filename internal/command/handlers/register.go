// Package handlers явно регистрирует обработчики всех команд.
// Граф зависимостей виден в одном месте, импорт пакетов не имеет побочных эффектов.
package handlers

import (
	"sync"

	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/help"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/pollhandler"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/servehandler"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/sessionshandler"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/statushandler"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/version"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/watchdoghandler"
)

var once sync.Once

// RegisterAll регистрирует все обработчики в глобальном реестре.
// Повторные вызовы ничего не делают.
func RegisterAll() {
	once.Do(func() {
		servehandler.RegisterCmd()
		pollhandler.RegisterCmd()
		statushandler.RegisterCmd()
		watchdoghandler.RegisterCmd()
		sessionshandler.RegisterCmd()
		version.RegisterCmd()
		help.RegisterCmd()
	})
}
