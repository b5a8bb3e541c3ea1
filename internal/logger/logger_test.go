package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
	}{
		{name: "defaults", cfg: config.LogConfig{}},
		{name: "console debug", cfg: config.LogConfig{Level: "debug", Format: "console", OutputPath: "stderr"}},
		{name: "invalid level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(config.LogConfig{Level: "info", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("run completed")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"run completed"`) {
		t.Errorf("log file content = %s", data)
	}
}
