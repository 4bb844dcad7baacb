package scripting

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".syruprc")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestPredicateSelectsByReturnValue(t *testing.T) {
	path := writeScript(t, `
function select_variable(name)
  return name == "counter"
end
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer p.Close()

	ok, err := p.Select("counter")
	if err != nil || !ok {
		t.Errorf("Select(counter) = %v, %v, want true, nil", ok, err)
	}
	ok, err = p.Select("total")
	if err != nil || ok {
		t.Errorf("Select(total) = %v, %v, want false, nil", ok, err)
	}
}

func TestPredicateNilReturnMeansSelect(t *testing.T) {
	path := writeScript(t, `
function select_variable(name)
end
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer p.Close()

	ok, err := p.Select("anything")
	if err != nil || !ok {
		t.Errorf("Select with nil-returning script = %v, %v, want true, nil", ok, err)
	}
}

func TestLoadMissingSelectVariableFunction(t *testing.T) {
	path := writeScript(t, `x = 1`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load with no select_variable = nil error, want error")
	}
}

func TestFilterWithNilPredicateSelectsEverything(t *testing.T) {
	declared := []string{"a", "b", "c"}
	out, err := Filter(nil, declared)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(out) != 3 {
		t.Errorf("Filter(nil, ...) = %v, want all 3 entries", out)
	}
}

func TestFilterAppliesPredicate(t *testing.T) {
	path := writeScript(t, `
function select_variable(name)
  return name ~= "b"
end
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer p.Close()

	out, err := Filter(p, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(out) != 2 || out[0] != "a" || out[1] != "c" {
		t.Errorf("Filter = %v, want [a c]", out)
	}
}
