package format

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dhamidi/ometa/grammar/syntax"
)

var testFilter string

func init() {
	flag.StringVar(&testFilter, "filter", "", "filter test files by substring match on filename")
}

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(m.Run())
}

// TestRoundTrip_Testdata prints every grammar under testdata and parses the
// output again. Both parses must yield the same trees.
// Use -filter to select files: go test ./format -filter=calc
func TestRoundTrip_Testdata(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.ometa"))
	if err != nil {
		t.Fatalf("failed to list testdata: %v", err)
	}
	if len(files) == 0 {
		t.Skip("no .ometa files found in testdata")
	}

	for _, file := range files {
		if testFilter != "" && !strings.Contains(file, testFilter) {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(file), ".ometa")
		t.Run(name, func(t *testing.T) {
			runRoundTripTest(t, file)
		})
	}
}

func runRoundTripTest(t *testing.T, filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	orig, err := syntax.ParseAll(string(source))
	if err != nil {
		t.Fatalf("original does not parse: %v", err)
	}

	formatted, err := PrettyPrint(source)
	if err != nil {
		t.Fatalf("formatter error: %v", err)
	}

	again, err := syntax.ParseAll(string(formatted))
	if err != nil {
		t.Errorf("formatted output does not parse: %v", err)
		t.Logf("\n=== Formatted output ===\n%s", formatted)
		return
	}

	if diff := cmp.Diff(orig, again, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("tree mismatch after round-trip formatting (-orig +formatted):\n%s", diff)
		t.Logf("\n=== Formatted output ===\n%s", formatted)
	}

	// Formatting is stable.
	twice, err := PrettyPrint(formatted)
	if err != nil {
		t.Fatalf("formatting the output failed: %v", err)
	}
	if diff := cmp.Diff(string(formatted), string(twice)); diff != "" {
		t.Errorf("second formatting differs (-first +second):\n%s", diff)
	}
}
