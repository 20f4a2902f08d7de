package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	models := filepath.Join(dir, "models.yml")
	if err := os.WriteFile(models, []byte("MiModelo:\n  required_vars: [nombre, apellido]\n  admissible_vars: [edad, direccion]\n"), 0o600); err != nil {
		t.Fatalf("write models: %v", err)
	}
	cfg := filepath.Join(dir, "odm.yml")
	body := "models: " + models + `
geocoder:
  provider: static
  static:
    "calle mayor 1": [40.4155, -3.7074]
`
	if err := os.WriteFile(cfg, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDemoCommand(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "--config", cfg, "demo", "--attrs", `{"nombre":"Alex","apellido":"gomez","direccion":"Calle Mayor 1"}`)
	if err != nil {
		t.Fatalf("demo: %v\n%s", err, out)
	}
	if !strings.Contains(out, "found: <none>") {
		t.Fatalf("expected final absent lookup, got:\n%s", out)
	}
}

func TestKindsCommand(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "kinds")
	if err != nil {
		t.Fatalf("kinds: %v", err)
	}
	if !strings.HasPrefix(out, "MiModelo required=[apellido nombre]") {
		t.Fatalf("unexpected kinds output: %q", out)
	}
}

func TestCreateRejectsUnknownAttribute(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "create", "MiModelo", `{"nombre":"a","apellido":"b","color":"red"}`)
	if err == nil || !strings.Contains(err.Error(), "color") {
		t.Fatalf("expected schema violation naming color, got %v", err)
	}
}

func TestCreateCommand(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "--config", cfg, "create", "MiModelo", `{"nombre":"a","apellido":"b","edad":3}`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, `"_id"`) {
		t.Fatalf("expected saved snapshot with _id, got %s", out)
	}
}

func TestHelpdeskNeedsRedis(t *testing.T) {
	if _, err := run(t, "--config", writeConfig(t), "helpdesk", "pending"); err == nil {
		t.Fatalf("expected helpdesk without redis to fail")
	}
}

func TestGetMissing(t *testing.T) {
	if _, err := run(t, "--config", writeConfig(t), "get", "MiModelo", "nope"); err == nil {
		t.Fatalf("expected missing document error")
	}
}
