package logging

import (
	"errors"
	"fmt"
)

// Поддерживаемые форматы вывода логов.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Поддерживаемые уровни логирования.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Поддерживаемые типы вывода логов.
const (
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Значения по умолчанию для Config.
const (
	DefaultLevel      = LevelInfo
	DefaultFormat     = FormatJSON
	DefaultOutput     = OutputStderr
	DefaultFilePath   = "/var/log/aprs-notify.log"
	DefaultMaxSize    = 50 // MB
	DefaultMaxBackups = 5
	DefaultMaxAge     = 14 // days
	DefaultCompress   = true
)

// ErrInvalidLevel возвращается Validate для неизвестного уровня.
var ErrInvalidLevel = errors.New("logging: unknown level")

// ErrInvalidOutput возвращается Validate для неизвестного вывода.
var ErrInvalidOutput = errors.New("logging: unknown output")

// DefaultConfig возвращает Config со значениями по умолчанию.
func DefaultConfig() Config {
	return Config{
		Level:      DefaultLevel,
		Format:     DefaultFormat,
		Output:     DefaultOutput,
		FilePath:   DefaultFilePath,
		MaxSize:    DefaultMaxSize,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAge,
		Compress:   DefaultCompress,
	}
}

// Config содержит настройки логирования.
type Config struct {
	// Format: "json" или "text".
	Format string

	// Level: "debug", "info", "warn", "error".
	Level string

	// Output: "stderr" или "file".
	Output string

	// FilePath используется при Output="file".
	FilePath string

	// Параметры ротации lumberjack.
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Validate проверяет уровень и вывод.
// Пустые значения допустимы и означают значения по умолчанию.
func (c Config) Validate() error {
	switch c.Level {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLevel, c.Level)
	}
	switch c.Output {
	case "", OutputStderr, OutputFile:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutput, c.Output)
	}
	return nil
}
