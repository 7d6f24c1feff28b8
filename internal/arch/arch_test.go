// ./internal/arch/arch_test.go
package arch

import (
	"bytes"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"testing"
)

type pkg struct {
	ImportPath string
	Imports    []string
	Standard   bool
}

func TestImportBoundaries(t *testing.T) {
	cmd := exec.Command("go", "list", "-json", "./...")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("go list: %v", err)
	}
	dec := json.NewDecoder(&out)

	bans := map[string][]string{
		"mentropy/internal/motif": {
			"mentropy/internal/windows", "mentropy/internal/scanner",
			"mentropy/internal/entropy", "mentropy/internal/pipeline",
			"mentropy/internal/writers", "mentropy/internal/output",
			"mentropy/internal/cli", "mentropy/internal/app", "mentropy/cmd/",
		},
		"mentropy/internal/windows": {
			"mentropy/internal/scanner", "mentropy/internal/entropy",
			"mentropy/internal/pipeline", "mentropy/internal/writers",
			"mentropy/internal/output",
			"mentropy/internal/cli", "mentropy/internal/app", "mentropy/cmd/",
		},
		"mentropy/internal/scanner": {
			"mentropy/internal/entropy", "mentropy/internal/pipeline",
			"mentropy/internal/writers", "mentropy/internal/output",
			"mentropy/internal/cli", "mentropy/internal/app", "mentropy/cmd/",
		},
		"mentropy/internal/entropy": {
			"mentropy/internal/pipeline", "mentropy/internal/writers",
			"mentropy/internal/output",
			"mentropy/internal/cli", "mentropy/internal/app", "mentropy/cmd/",
		},
		"mentropy/internal/pipeline": {
			"mentropy/internal/writers", "mentropy/internal/output",
			"mentropy/internal/cli", "mentropy/internal/app", "mentropy/cmd/",
		},
		"mentropy/internal/writers": {
			"mentropy/internal/cli", "mentropy/internal/app", "mentropy/cmd/",
		},
		"mentropy/internal/output": {
			"mentropy/internal/pipeline", "mentropy/internal/writers",
			"mentropy/internal/cli", "mentropy/internal/app", "mentropy/cmd/",
		},
	}

	var violations []string
	for {
		var p pkg
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.HasPrefix(p.ImportPath, "mentropy/") {
			continue
		}
		imp := p.ImportPath
		for prefix, forbidden := range bans {
			if !strings.HasPrefix(imp, prefix) {
				continue
			}
			for _, dep := range p.Imports {
				if !strings.HasPrefix(dep, "mentropy/") {
					continue
				}
				for _, ban := range forbidden {
					if strings.HasPrefix(dep, ban) {
						violations = append(violations, imp+" → "+dep)
					}
				}
			}
		}
	}

	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n  %s", strings.Join(violations, "\n  "))
	}
}
