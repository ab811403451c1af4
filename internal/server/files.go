package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/r9s-ai/gemini-proxy/internal/logx"
)

// accessLog is the sink for per-request lines. A nil *accessLog means disabled.
type accessLog struct {
	logger *log.Logger
	color  bool
	file   *os.File
}

func openAccessLog(enabled bool, path string) (*accessLog, error) {
	if !enabled {
		return nil, nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return &accessLog{logger: log.New(os.Stdout, "", 0), color: logx.ColorEnabled()}, nil
	}
	if err := mkParent(path); err != nil {
		return nil, err
	}
	// #nosec G304 -- path is operator config.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &accessLog{logger: log.New(f, "", 0), file: f}, nil
}

func (a *accessLog) Logger() *log.Logger {
	if a == nil {
		return nil
	}
	return a.logger
}

func (a *accessLog) Color() bool { return a != nil && a.color }

func (a *accessLog) Close() error {
	if a == nil || a.file == nil {
		return nil
	}
	return a.file.Close()
}

// pidFile is the path of a written pid file; empty when none was requested.
type pidFile string

// writePIDFile writes the current pid atomically (tmp file + rename).
func writePIDFile(path string) (pidFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if err := mkParent(path); err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	// #nosec G304 -- path is operator config.
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return pidFile(path), nil
}

func (p pidFile) Remove() error {
	if p == "" {
		return nil
	}
	return os.Remove(string(p))
}

func mkParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
