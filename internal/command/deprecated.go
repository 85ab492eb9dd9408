package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/zzaxusl0a/APRS-notify/internal/config"
)

// Deprecatable опционально реализуется устаревшими командами.
// Используется help для пометки команд.
type Deprecatable interface {
	IsDeprecated() bool
	NewName() string
}

var (
	_ Handler      = (*DeprecatedBridge)(nil)
	_ Deprecatable = (*DeprecatedBridge)(nil)
)

// warnOut - поток предупреждений. nil - текущий os.Stderr; stdout занят
// выводом команды.
var warnOut io.Writer

// DeprecatedBridge выполняет команду под устаревшим именем (имена функций
// прежнего развёртывания: notify, sms-processor) с предупреждением при
// каждом вызове.
type DeprecatedBridge struct {
	actual     Handler
	deprecated string
	newName    string
}

// Name возвращает устаревшее имя.
func (b *DeprecatedBridge) Name() string {
	return b.deprecated
}

// Description делегирует actual handler.
func (b *DeprecatedBridge) Description() string {
	return b.actual.Description()
}

// IsDeprecated всегда true.
func (b *DeprecatedBridge) IsDeprecated() bool {
	return true
}

// NewName возвращает актуальное имя команды.
func (b *DeprecatedBridge) NewName() string {
	return b.newName
}

// Execute пишет предупреждение в stderr и выполняет actual handler.
// Отменённый ctx возвращается сразу, без предупреждения.
func (b *DeprecatedBridge) Execute(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := warnOut
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "WARNING: command '%s' is deprecated, use '%s' instead\n",
		b.deprecated, b.newName)
	return b.actual.Execute(ctx, cfg)
}
