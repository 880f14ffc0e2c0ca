package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v\n%s", err, out.String())
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[llm]") {
		t.Fatalf("sample config missing llm section:\n%s", data)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("existing"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "init", "--path", target})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected refusal without --overwrite")
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "existing" {
		t.Fatal("existing file must not be touched")
	}
}

func TestStageNames(t *testing.T) {
	names := stageNames()
	if !strings.HasPrefix(names, "raw_extraction, categorization") {
		t.Fatalf("unexpected stage names: %s", names)
	}
	if !strings.HasSuffix(names, "speaker_tracking") {
		t.Fatalf("unexpected stage names: %s", names)
	}
}

func TestYesNo(t *testing.T) {
	if yesNo(true) != "yes" || yesNo(false) != "no" {
		t.Fatal("yesNo broken")
	}
}

func TestRenderTableAlignsNumericColumns(t *testing.T) {
	rendered := renderTable(
		[]column{{title: "Name"}, {title: "Count", numeric: true}},
		[][]string{
			{"economics", "12"},
			{"tech", "7"},
		},
	)
	if !strings.Contains(rendered, "Name") || !strings.Contains(rendered, "Count") {
		t.Fatalf("missing headers:\n%s", rendered)
	}
	// Right alignment pads the short value on the left, so "7" sits flush
	// against the closing border rather than the opening one.
	for _, line := range strings.Split(rendered, "\n") {
		if !strings.Contains(line, "tech") {
			continue
		}
		if !strings.Contains(line, " 7 ") || strings.Contains(line, "│ 7 ") {
			t.Fatalf("numeric column not right-aligned:\n%s", rendered)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	rendered := renderTable(
		[]column{{title: "A"}, {title: "B"}, {title: "C"}},
		[][]string{{"only"}},
	)
	if !strings.Contains(rendered, "only") {
		t.Fatalf("row cell missing:\n%s", rendered)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output for zero columns")
	}
}
