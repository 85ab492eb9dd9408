// Package constants содержит константы, используемые в проекте aprs-notify.
// Константы сгруппированы по их функциональному назначению.
package constants

// Константы сообщений приложения
const (
	// MsgAppExit - сообщение о завершении работы программы
	MsgAppExit = "Завершение работы программы"
	// MsgErrProcessing - сообщение об обработке ошибки
	MsgErrProcessing = "Обработка ошибки"
)

// Версия приложения. Переопределяется при сборке:
//
//	go build -ldflags "-X github.com/zzaxusl0a/APRS-notify/internal/constants.Version=1.2.0"
var (
	// Version - версия приложения
	Version = "dev"
	// PreCommitHash - хеш коммита на момент сборки
	PreCommitHash = "unknown"
)

const (
	// AppName - имя приложения в логах, метриках и User-Agent
	AppName = "aprs-notify"
	// APIVersion - версия формата вывода команд
	APIVersion = "v1"
)

// Имена команд (kebab-case, регистрируются в command registry)
const (
	// ActServe - HTTP сервер: webhook SMS, приём watchdog, планировщик опросов
	ActServe = "serve"
	// ActPoll - один цикл оценки для AN_CALLSIGN
	ActPoll = "poll"
	// ActStatus - текущий статус позывного
	ActStatus = "status"
	// ActWatchdog - обработка пакета записей об ошибках
	ActWatchdog = "watchdog"
	// ActSessions - список активных сессий мониторинга
	ActSessions = "sessions"
	// ActVersion - информация о версии
	ActVersion = "version"
	// ActHelp - список команд
	ActHelp = "help"
)

// Имена операций для логов, алертов и трейсинга
const (
	OpStart    = "start"
	OpStop     = "stop"
	OpStatus   = "status"
	OpEvaluate = "evaluate"
	OpWatchdog = "watchdog"
	OpWebhook  = "webhook"
	OpSchedule = "schedule"
)
