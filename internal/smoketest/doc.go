// Package smoketest содержит smoke-тесты системной целостности aprs-notify.
//
// Smoke-тесты проверяют регистрацию всех команд в глобальном реестре,
// устаревшие имена прежнего развёртывания (DeprecatedBridge) и формат
// JSON вывода ошибок у команд, требующих параметров.
//
// Unit-тесты бизнес-логики находятся в пакетах обработчиков.
package smoketest
