package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

func TestNew_SQLite(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "nested", "validator.db"),
		},
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	for _, m := range model.AllModels {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not migrated", m)
		}
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "mysql"}}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
