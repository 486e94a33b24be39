package env

import (
	"strings"
	"testing"
)

func lookup(t *testing.T, env []string, key string) (string, bool) {
	t.Helper()
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, key+"="); ok {
			return v, true
		}
	}
	return "", false
}

func TestMergeOverlayOverridesParent(t *testing.T) {
	t.Setenv("MCPSKILL_TEST_BASE", "parent")
	env := Merge(map[string]string{"MCPSKILL_TEST_BASE": "child", "MCPSKILL_TEST_EXTRA": "1"})
	if v, _ := lookup(t, env, "MCPSKILL_TEST_BASE"); v != "child" {
		t.Fatalf("overlay must win on conflict, got %q", v)
	}
	if v, _ := lookup(t, env, "MCPSKILL_TEST_EXTRA"); v != "1" {
		t.Fatalf("overlay-only key missing, got %q", v)
	}
}

func TestMergeKeepsParentEnv(t *testing.T) {
	t.Setenv("MCPSKILL_TEST_KEEP", "kept")
	env := Merge(nil)
	if v, ok := lookup(t, env, "MCPSKILL_TEST_KEEP"); !ok || v != "kept" {
		t.Fatalf("parent env not preserved: %q ok=%v", v, ok)
	}
}

func TestMergeExpandsVariables(t *testing.T) {
	t.Setenv("MCPSKILL_TEST_ROOT", "/srv")
	env := Merge(map[string]string{"MCPSKILL_TEST_PATH": "${MCPSKILL_TEST_ROOT}/data"})
	if v, _ := lookup(t, env, "MCPSKILL_TEST_PATH"); v != "/srv/data" {
		t.Fatalf("expected expansion, got %q", v)
	}
}

func TestMergeSkipsEmptyKeys(t *testing.T) {
	env := Merge(map[string]string{"": "ignored"})
	if _, ok := lookup(t, env, ""); ok {
		t.Fatalf("empty key must be skipped")
	}
}
