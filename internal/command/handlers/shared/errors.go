// Package shared содержит общие компоненты обработчиков команд:
// коды ошибок CLI и единый вывод результата в text или JSON.
package shared

// Коды ошибок команд в формате NAMESPACE.ERROR_TYPE.
const (
	// ErrConfigMissing - не задан обязательный параметр команды.
	ErrConfigMissing = "CONFIG.MISSING"
	// ErrInputRead - не удалось прочитать входные данные.
	ErrInputRead = "INPUT.READ_FAILED"
	// ErrInit - не удалось собрать зависимости команды.
	ErrInit = "APP.INIT_FAILED"
)
