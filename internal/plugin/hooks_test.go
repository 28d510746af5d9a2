package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// installScripts lays the given script plugins out under one plugin root
// and discovers them.
func installScripts(t *testing.T, plugins ...*Plugin) (*Manager, string) {
	t.Helper()

	root := t.TempDir()
	for _, p := range plugins {
		writeManifest(t, root, p.Manifest)
		data, err := os.ReadFile(p.Executable)
		if err != nil {
			t.Fatalf("failed to read script: %v", err)
		}
		dst := filepath.Join(root, p.Manifest.Name, p.Manifest.Executable)
		if err := os.WriteFile(dst, data, 0755); err != nil {
			t.Fatalf("failed to copy script: %v", err)
		}
	}

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	return manager, root
}

func TestDispatcher_Dispatch(t *testing.T) {
	good := writeScript(t, "good", `cat > received.json
echo '{"success":true}'
`)
	bad := writeScript(t, "bad", `exit 1
`)
	other := writeScript(t, "other", `echo '{"success":true}'
`, EventSessionEnded)

	manager, root := installScripts(t, good, bad, other)

	d := NewDispatcher(manager, NewExecutor(2*time.Second))
	results := d.Dispatch(context.Background(), *stepRequest(81))

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Plugin != "bad" || results[0].Err == nil {
		t.Errorf("bad plugin should fail first: %+v", results[0])
	}
	if results[1].Plugin != "good" || results[1].Err != nil || !results[1].Response.Success {
		t.Errorf("good plugin should succeed: %+v", results[1])
	}

	if _, err := os.Stat(filepath.Join(root, "good", "received.json")); err != nil {
		t.Errorf("plugin should run in its own directory: %v", err)
	}
}

func TestDispatcher_DispatchAsync(t *testing.T) {
	marker := writeScript(t, "marker", `touch ran
echo '{"success":true}'
`)
	manager, root := installScripts(t, marker)

	d := NewDispatcher(manager, NewExecutor(2*time.Second))
	d.DispatchAsync(*stepRequest(60))
	d.Wait()

	if _, err := os.Stat(filepath.Join(root, "marker", "ran")); err != nil {
		t.Errorf("async dispatch did not run the plugin: %v", err)
	}
}
