package util

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, zapcore.InfoLevel)
	log.Debug("quiet")
	log.Info("loud", zap.String("machine", "toast-1"))
	log.Sync()

	s := buf.String()
	if strings.Contains(s, "quiet") {
		t.Fatal(s)
	}
	if !strings.Contains(s, "[INFO]") || !strings.Contains(s, "machine") {
		t.Fatal(s)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != zapcore.DebugLevel {
		t.Fatal("debug")
	}
	if ParseLevel("tacos") != zapcore.InfoLevel {
		t.Fatal("default")
	}
}

func TestLogFile(t *testing.T) {
	f := &LogFile{
		Filename: filepath.Join(t.TempDir(), "sio.log"),
	}
	w := f.Writer()
	log := NewLogger(w, zapcore.InfoLevel)
	log.Info("rotating")
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}
