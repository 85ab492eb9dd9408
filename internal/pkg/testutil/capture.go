// Package testutil содержит общие утилиты для тестирования.
package testutil

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// CaptureStdout выполняет fn, перехватывая stdout, и возвращает вывод.
func CaptureStdout(t *testing.T, fn func()) string {
	t.Helper()
	stdout, _ := CaptureOutput(t, fn)
	return stdout
}

// CaptureOutput выполняет fn, перехватывая stdout и stderr раздельно.
// Команды пишут результат в stdout, предупреждения об устаревших именах
// в stderr. Каналы читаются параллельно, чтобы fn не блокировался на
// заполненном pipe.
func CaptureOutput(t *testing.T, fn func()) (stdout, stderr string) {
	t.Helper()
	outR, outW, err := os.Pipe()
	require.NoError(t, err, "не удалось создать pipe для stdout")
	errR, errW, err := os.Pipe()
	require.NoError(t, err, "не удалось создать pipe для stderr")

	outC := drain(outR)
	errC := drain(errR)

	oldStdout, oldStderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outW, errW
	func() {
		defer func() { os.Stdout, os.Stderr = oldStdout, oldStderr }()
		fn()
	}()

	_ = outW.Close() //nolint:errcheck // test helper pipe close
	_ = errW.Close() //nolint:errcheck // test helper pipe close
	return <-outC, <-errC
}

func drain(r *os.File) <-chan string {
	c := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		_ = r.Close()
		c <- buf.String()
	}()
	return c
}
