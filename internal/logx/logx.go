package logx

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var enableColor = isatty.IsTerminal(os.Stdout.Fd()) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""

func ColorEnabled() bool { return enableColor }

// New builds the application logger. out defaults to stderr.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
		DisableColors:   !enableColor,
	})
	return l, nil
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

func statusText(status int, color bool) string {
	s := strconv.Itoa(status)
	if !color {
		return s
	}
	code := ansiRed
	switch status / 100 {
	case 2:
		code = ansiGreen
	case 3:
		code = ansiCyan
	case 4:
		code = ansiYellow
	}
	return code + s + ansiReset
}

// AccessLine renders one access log line:
//
//	[GPX] 2026/01/26 - 17:44:22 | 200 | 1.2s | 127.0.0.1 | POST "/api/gemini-proxy" | mode=draft model=gemini-2.5-flash
func AccessLine(ts time.Time, status int, latency time.Duration, clientIP, method, path string, fields map[string]any, color bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[GPX] %s | %s | %s | %s | %s %q",
		ts.Format("2006/01/02 - 15:04:05"),
		statusText(status, color),
		latency,
		strings.TrimSpace(clientIP),
		strings.TrimSpace(method),
		path,
	)
	if extra := formatFields(fields); extra != "" {
		b.WriteString(" | ")
		b.WriteString(extra)
	}
	return b.String()
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "error" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// error goes last so the line stays scannable.
	if _, ok := fields["error"]; ok {
		keys = append(keys, "error")
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
			if k == "error" {
				parts = append(parts, fmt.Sprintf("%s=%q", k, t))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", k, t))
		case float64:
			s := strings.TrimSpace(strconv.FormatFloat(t, 'f', -1, 64))
			parts = append(parts, fmt.Sprintf("%s=%s", k, s))
		default:
			s := strings.TrimSpace(fmt.Sprintf("%v", v))
			if s == "" || s == "<nil>" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", k, s))
		}
	}
	return strings.Join(parts, " ")
}
