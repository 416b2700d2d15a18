package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/open-handtrack/pipeline/pkg/config"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Fatalf(string, ...interface{}) {}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestConfigServiceLoad(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 6001\n")

	svc, err := NewConfigService(path, nopLogger{})
	if err != nil {
		t.Fatalf("NewConfigService failed: %v", err)
	}

	cfg := svc.Current()
	if cfg == nil {
		t.Fatalf("Expected loaded config")
	}
	if cfg.Server.Port != 6001 {
		t.Errorf("Expected port 6001, got %d", cfg.Server.Port)
	}
}

func TestConfigServiceMissingFileNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	svc, err := NewConfigService(path, nopLogger{})
	if err != nil {
		t.Fatalf("NewConfigService failed: %v", err)
	}
	if svc.Current() != nil {
		t.Errorf("Expected nil config when file is missing")
	}
}

func TestConfigServiceUpdate(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 6001\n")
	svc, err := NewConfigService(path, nopLogger{})
	if err != nil {
		t.Fatalf("NewConfigService failed: %v", err)
	}

	updated := make(chan struct{}, 1)
	svc.SetOnUpdate(func(*config.Config) { updated <- struct{}{} })

	newYAML := []byte("server:\n  port: 7001\nmapper:\n  scale: 0.25\n")
	if err := svc.Update(newYAML); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got := svc.Current().Server.Port; got != 7001 {
		t.Errorf("Expected active port 7001, got %d", got)
	}
	if got := svc.Current().Mapper.Scale; got != 0.25 {
		t.Errorf("Expected active scale 0.25, got %v", got)
	}

	// The update is persisted before it becomes active.
	onDisk, err := svc.CurrentYAML()
	if err != nil {
		t.Fatalf("CurrentYAML failed: %v", err)
	}
	if string(onDisk) != string(newYAML) {
		t.Errorf("On-disk YAML not replaced:\n%s", onDisk)
	}

	<-updated
}

func TestConfigServiceUpdateRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 6001\n")
	svc, err := NewConfigService(path, nopLogger{})
	if err != nil {
		t.Fatalf("NewConfigService failed: %v", err)
	}

	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed yaml", yaml: ": not yaml ["},
		{name: "port out of range", yaml: "server:\n  port: 70000\n"},
		{name: "zero scale", yaml: "mapper:\n  scale: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Update([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	// Rejected updates leave both copies untouched.
	if got := svc.Current().Server.Port; got != 6001 {
		t.Errorf("Active config changed by rejected update: port %d", got)
	}
}
