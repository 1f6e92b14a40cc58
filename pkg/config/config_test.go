package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name string        `yaml:"name" toml:"name"`
	Port int           `yaml:"port" toml:"port"`
	TTL  time.Duration `yaml:"ttl" toml:"ttl"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_YAMLWithEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "gallery")
	p := writeFile(t, "c.yaml", "name: ${SAMPLE_NAME}\nport: 8080\nttl: 90m\n")

	var got sample
	if err := Load(p, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "gallery" || got.Port != 8080 || got.TTL != 90*time.Minute {
		t.Errorf("got %+v", got)
	}
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, "c.toml", "name = \"gallery\"\nport = 9090\nttl = \"2h\"\n")

	var got sample
	if err := Load(p, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "gallery" || got.Port != 9090 || got.TTL != 2*time.Hour {
		t.Errorf("got %+v", got)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeFile(t, "c.yaml", "name: x\n")

	var got sample
	err := Load(p, &got)
	if err == nil || !strings.Contains(err.Error(), "port is required") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	def := writeFile(t, "default.toml", "port = 1\n")

	var got sample
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), def, &got); err != nil {
		t.Fatal(err)
	}
	if got.Port != 1 {
		t.Errorf("port = %d, want 1", got.Port)
	}
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), "", &got); err == nil {
		t.Error("expected error without default file")
	}
}
