package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/songbook/internal/editor"
	"github.com/five82/songbook/internal/song"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("backend = \"sqlite\"\nlocale = \"en\"\nlog_level = \"debug\"\nlog_dir = %q\n\n[sqlite]\npath = %q\n",
		filepath.Join(dir, "logs"), filepath.Join(dir, "songs.db"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddListDelete(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "add", "--title", "Be Thou My Vision", "--lyrics", "Be thou my vision")
	if err != nil {
		t.Fatalf("add: %v (%s)", err, out)
	}
	key := strings.TrimSpace(out)
	if key == "" {
		t.Fatalf("add printed no key")
	}
	if _, err := run(t, "", "--config", cfg, "add", "--title", "Amazing Grace", "--lyrics", "How sweet the sound", "--link", "https://youtu.be/x"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err = run(t, "", "--config", cfg, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "1. Amazing Grace\n2. Be Thou My Vision\n" {
		t.Fatalf("list output = %q", out)
	}

	out, err = run(t, "", "--config", cfg, "list", "--search", "be", "--json")
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var items []listItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode list json: %v (%s)", err, out)
	}
	if len(items) != 1 || items[0].Key != key || items[0].Lyrics != "Be thou my vision" {
		t.Fatalf("list --json = %#v", items)
	}

	out, err = run(t, "n\n", "--config", cfg, "delete", key)
	if !errors.Is(err, editor.ErrNotConfirmed) {
		t.Fatalf("delete declined = %v, want ErrNotConfirmed", err)
	}
	if !strings.Contains(out, `Delete song "Be Thou My Vision"?`) {
		t.Fatalf("prompt = %q", out)
	}

	out, err = run(t, "y\n", "--config", cfg, "delete", key)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, `Deleted "Be Thou My Vision"`) {
		t.Fatalf("delete output = %q", out)
	}

	out, err = run(t, "", "--config", cfg, "list")
	if err != nil || out != "1. Amazing Grace\n" {
		t.Fatalf("list after delete = %q, %v", out, err)
	}
}

func TestAdd_ValidationFailsBeforeStore(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, "", "--config", cfg, "add", "--title", "Only title")
	var ve *song.ValidationError
	if !errors.As(err, &ve) || !ve.Has(song.FieldLyrics) {
		t.Fatalf("add without lyrics = %v, want ValidationError naming lyrics", err)
	}
	out, err := run(t, "", "--config", cfg, "list")
	if err != nil || out != "" {
		t.Fatalf("list = %q, %v; want empty", out, err)
	}
}

func TestDelete_UnknownKeyAndYesFlag(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := run(t, "", "--config", cfg, "delete", "missing"); !errors.Is(err, editor.ErrUnknownRecord) {
		t.Fatalf("delete missing = %v, want ErrUnknownRecord", err)
	}

	out, err := run(t, "", "--config", cfg, "add", "--title", "T", "--lyrics", "L")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := run(t, "", "--config", cfg, "delete", "--yes", strings.TrimSpace(out)); err != nil {
		t.Fatalf("delete --yes: %v", err)
	}
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"yes", true},
		{"\n", false},
		{"no\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := promptConfirmer{in: strings.NewReader(tt.in), out: &out}
		if got := p.Confirm(song.Record{Title: "X"}); got != tt.want {
			t.Fatalf("Confirm(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if out.String() != `Delete song "X"? [y/N] ` {
			t.Fatalf("prompt = %q", out.String())
		}
	}
}

func TestLogs_PrintsWriteFailuresFromLog(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := run(t, "", "--config", cfg, "add", "--title", "T", "--lyrics", "L"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := run(t, "", "--config", cfg, "delete", "--yes", "missing"); err == nil {
		t.Fatalf("delete missing succeeded")
	}

	out, err := run(t, "", "--config", cfg, "logs", "--level", "debug", "-n", "0")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "subscription started") {
		t.Fatalf("logs output missing debug records:\n%s", out)
	}

	out, err = run(t, "", "--config", cfg, "logs", "--level", "error")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "level=DEBUG") || strings.Contains(out, "level=INFO") {
		t.Fatalf("logs --level error printed lower levels:\n%s", out)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("SONGBOOK_TEST_ENV", "x")
	if envOr("SONGBOOK_TEST_ENV", "d") != "x" || envOr("SONGBOOK_TEST_UNSET", "d") != "d" {
		t.Fatalf("envOr did not prefer the environment")
	}
}
