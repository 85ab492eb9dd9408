// Package version реализует команду version: версия сборки и таблица
// устаревших имён команд.
package version

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/shared"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
)

// RegisterCmd регистрирует команду version.
func RegisterCmd() {
	command.Register(&VersionHandler{})
}

// VersionData содержит информацию о версии приложения.
type VersionData struct {
	// Version - полная версия приложения.
	Version string `json:"version"`

	// GoVersion - версия Go, использованная при сборке.
	GoVersion string `json:"go_version"`

	// Commit - хеш коммита на момент сборки.
	Commit string `json:"commit"`

	// AliasMapping - команды и их устаревшие имена прежнего развёртывания.
	AliasMapping []AliasEntry `json:"alias_mapping"`
}

// AliasEntry связывает команду с устаревшим именем.
type AliasEntry struct {
	Command string `json:"command"`
	// LegacyAlias пуст, если устаревшего имени нет.
	LegacyAlias string `json:"legacy_alias"`
}

// WriteText выводит информацию о версии в человекочитаемом формате.
func (d *VersionData) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s version %s\n  Go:     %s\n  Commit: %s\n",
		constants.AppName, d.Version, d.GoVersion, d.Commit)
	if err != nil {
		return err
	}

	var aliased []AliasEntry
	for _, e := range d.AliasMapping {
		if e.LegacyAlias != "" {
			aliased = append(aliased, e)
		}
	}
	if len(aliased) == 0 {
		return nil
	}
	if _, err = fmt.Fprintln(w, "\nУстаревшие имена:"); err != nil {
		return err
	}
	for _, e := range aliased {
		if _, err = fmt.Fprintf(w, "  %-14s → %s\n", e.LegacyAlias, e.Command); err != nil {
			return err
		}
	}
	return nil
}

// buildVersionData создаёт VersionData с fallback значениями.
// Если version пустой - используется "dev", если commit пустой - "unknown".
func buildVersionData(version, commit string) *VersionData {
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	commands := command.ListAllWithAliases()
	mapping := make([]AliasEntry, 0, len(commands))
	for _, c := range commands {
		mapping = append(mapping, AliasEntry{Command: c.Name, LegacyAlias: c.DeprecatedAlias})
	}
	return &VersionData{
		Version:      version,
		GoVersion:    runtime.Version(),
		Commit:       commit,
		AliasMapping: mapping,
	}
}

// VersionHandler обрабатывает команду version.
type VersionHandler struct{}

// Name возвращает имя команды.
func (h *VersionHandler) Name() string {
	return constants.ActVersion
}

// Description возвращает описание команды для вывода в help.
func (h *VersionHandler) Description() string {
	return "Вывод информации о версии приложения"
}

// Execute выводит версию. Конфигурация не обязательна.
func (h *VersionHandler) Execute(ctx context.Context, cfg *config.Config) error {
	run := shared.Begin(ctx, cfg, constants.ActVersion)
	return run.Success(buildVersionData(constants.Version, constants.PreCommitHash))
}
