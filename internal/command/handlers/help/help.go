// Package help реализует команду help: список зарегистрированных команд
// и переменные окружения запуска.
package help

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/shared"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
)

// RegisterCmd регистрирует команду help.
func RegisterCmd() {
	command.Register(&Handler{})
}

// Data содержит информацию обо всех доступных командах.
type Data struct {
	Commands []CommandInfo `json:"commands"`
}

// CommandInfo описывает одну команду.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Deprecated - true для устаревшего имени.
	Deprecated bool `json:"deprecated,omitempty"`
	// NewName - актуальное имя устаревшей команды.
	NewName string `json:"new_name,omitempty"`
}

// envOptions - основные переменные окружения запуска.
var envOptions = [][2]string{
	{"AN_COMMAND", "Команда, если не передана аргументом"},
	{"AN_CONFIG_FILE", "YAML файл конфигурации"},
	{"AN_OUTPUT_FORMAT=json", "Машиночитаемый вывод (ndjson - одной строкой)"},
	{"AN_CALLSIGN", "Позывной для poll и status"},
	{"AN_OWNER_PHONE", "Телефон владельца для poll"},
	{"AN_WATCHDOG_INPUT", "Файл конверта для watchdog (иначе stdin)"},
	{"AN_TWILIO_DRY_RUN=true", "SMS только логируются"},
}

// Handler обрабатывает команду help.
type Handler struct{}

// Name возвращает имя команды.
func (h *Handler) Name() string {
	return constants.ActHelp
}

// Description возвращает описание команды для вывода в help.
func (h *Handler) Description() string {
	return "Вывод списка доступных команд"
}

// Execute выполняет команду help: собирает список команд и выводит результат.
func (h *Handler) Execute(ctx context.Context, cfg *config.Config) error {
	return shared.Begin(ctx, cfg, constants.ActHelp).Success(buildData())
}

// buildData собирает информацию обо всех зарегистрированных командах.
func buildData() *Data {
	data := &Data{}
	for name, handler := range command.All() {
		info := CommandInfo{Name: name, Description: handler.Description()}
		if dep, ok := handler.(command.Deprecatable); ok && dep.IsDeprecated() {
			info.Deprecated = true
			info.NewName = dep.NewName()
		}
		data.Commands = append(data.Commands, info)
	}
	sort.Slice(data.Commands, func(i, j int) bool {
		return data.Commands[i].Name < data.Commands[j].Name
	})
	return data
}

// WriteText выводит информацию о командах в человекочитаемом формате.
func (d *Data) WriteText(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(constants.AppName + " — мониторинг температуры APRS маяка с управлением по SMS\n")
	sb.WriteString("\nКоманды:\n")

	maxLen := 0
	for _, cmd := range d.Commands {
		maxLen = max(maxLen, len(cmd.Name))
	}
	for _, cmd := range d.Commands {
		desc := cmd.Description
		if cmd.Deprecated {
			desc = fmt.Sprintf("[deprecated → %s] %s", cmd.NewName, desc)
		}
		fmt.Fprintf(&sb, "  %-*s  %s\n", maxLen, cmd.Name, desc)
	}

	sb.WriteString("\nОпции:\n")
	for _, opt := range envOptions {
		fmt.Fprintf(&sb, "  %-24s %s\n", opt[0], opt[1])
	}

	_, err := fmt.Fprint(w, sb.String())
	return err
}
