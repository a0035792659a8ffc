package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

var (
	mu       sync.Mutex
	useColor = os.Getenv("NO_COLOR") == ""
)

func paint(color, s string) string {
	if !useColor {
		return s
	}
	return color + s + colorReset
}

func write(color, level, tag, msg string) {
	mu.Lock()
	defer mu.Unlock()
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n",
		paint(colorGray, ts),
		paint(color, fmt.Sprintf("%-4s", level)),
		paint(colorBold, "["+tag+"]"),
		msg,
	)
}

// Info logs a neutral message under tag.
func Info(tag, msg string) {
	write(colorCyan, "INFO", tag, msg)
}

// Success logs a completed step.
func Success(tag, msg string) {
	write(colorGreen, "OK", tag, msg)
}

// Warn logs a recoverable problem (bad row, out-of-range date, skipped source).
func Warn(tag, msg string) {
	write(colorYellow, "WARN", tag, msg)
}

// Error logs a failure that aborted an operation.
func Error(tag, msg string) {
	write(colorRed, "ERR", tag, msg)
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	mu.Lock()
	defer mu.Unlock()
	line := strings.Repeat("─", 44)
	fmt.Fprintln(os.Stdout, paint(colorCyan, line))
	fmt.Fprintln(os.Stdout, paint(colorBold, "  lens-tracker")+"  "+paint(colorGray, version))
	fmt.Fprintln(os.Stdout, paint(colorGray, "  production status & delay dashboards"))
	fmt.Fprintln(os.Stdout, paint(colorCyan, line))
}

// Section prints a section header.
func Section(title string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stdout, "\n%s\n", paint(colorBold, "== "+title+" =="))
}

// Stats prints a key/value line, aligned.
func Stats(key string, value interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stdout, "  %-22s %v\n", key+":", value)
}

// Server logs the listen address.
func Server(addr string) {
	write(colorGreen, "OK", "Server", fmt.Sprintf("Listening on http://%s", addr))
}
