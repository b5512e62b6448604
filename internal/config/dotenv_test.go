package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dmeireles/escolar-iam-go/internal/config"
)

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# local overrides
PLAIN_KEY=plain
QUOTED_KEY="quoted value"
ALREADY_SET=from-file

not-a-pair
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("ALREADY_SET", "from-env")
	t.Setenv("PLAIN_KEY", "")
	t.Setenv("QUOTED_KEY", "")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := os.Getenv("PLAIN_KEY"); got != "plain" {
		t.Errorf("PLAIN_KEY = %q, want plain", got)
	}
	if got := os.Getenv("QUOTED_KEY"); got != "quoted value" {
		t.Errorf("QUOTED_KEY = %q, want unquoted value", got)
	}
	if got := os.Getenv("ALREADY_SET"); got != "from-env" {
		t.Errorf("existing env var was overridden: %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
