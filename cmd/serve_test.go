/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/bennypowers/millwright/internal/config"
	"github.com/bennypowers/millwright/internal/dispatcher"
	"github.com/bennypowers/millwright/internal/planmodel"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{TimeoutMs: 5000},
	}
}

func TestNewServerEnvRegistersLanguagePlugins(t *testing.T) {
	env := newServerEnv(testConfig(), t.TempDir())

	for _, ext := range []string{".go", ".ts", ".md", ".rs"} {
		if _, err := env.registry.Get(ext); err != nil {
			t.Errorf("registry.Get(%q) = %v, want a registered plugin", ext, err)
		}
	}
}

func TestNewServerEnvAppliesPluginPriorities(t *testing.T) {
	cfg := testConfig()
	cfg.PluginSelection.Priorities = map[string][]string{".ts": {"typescript"}}

	env := newServerEnv(cfg, t.TempDir())

	p, err := env.registry.Get(".ts")
	if err != nil {
		t.Fatalf("registry.Get(\".ts\") failed after priority configuration: %v", err)
	}
	if p.Name() != "typescript" {
		t.Errorf("got plugin %q, want typescript", p.Name())
	}
}

func TestRegisterToolsRegistersSpecSurface(t *testing.T) {
	env := newServerEnv(testConfig(), t.TempDir())
	d := dispatcher.New()

	if err := env.registerTools(d); err != nil {
		t.Fatalf("registerTools failed: %v", err)
	}

	want := []string{"prune", "refactor", "relocate", "rename_all", "reorder", "workspace"}
	got := d.Names()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("registered %d tools, want %d: got %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("registered tool names = %v, want %v", got, want)
			break
		}
	}
}

func TestRegisteredSchemasAreValidJSON(t *testing.T) {
	schemas := map[string]string{
		"rename_all": renameAllSchema,
		"relocate":   relocateSchema,
		"prune":      pruneSchema,
		"reorder":    reorderSchema,
		"refactor":   refactorSchema,
		"workspace":  workspaceSchema,
	}
	for name, raw := range schemas {
		if !json.Valid([]byte(raw)) {
			t.Errorf("schema for %q is not valid JSON", name)
		}
	}
}

func TestTargetArgPositionDefaultsToZero(t *testing.T) {
	target := targetArg{Kind: "file", Path: "a.go"}
	pos := target.position()
	if pos.Line != 0 || pos.Character != 0 {
		t.Errorf("position() = %+v, want zero value when Line/Character unset", pos)
	}
}

func TestTargetArgPositionUsesProvidedValues(t *testing.T) {
	line, character := uint32(3), uint32(7)
	target := targetArg{Kind: "symbol", Path: "a.go", Line: &line, Character: &character}
	pos := target.position()
	if pos.Line != 3 || pos.Character != 7 {
		t.Errorf("position() = %+v, want {3 7}", pos)
	}
}

func TestMaybeApplyReturnsPlanUnexecutedOnDryRun(t *testing.T) {
	env := newServerEnv(testConfig(), t.TempDir())
	plan := planmodel.Plan{PlanType: planmodel.KindRename}

	result, err := env.maybeApply(context.Background(), plan, true)
	if err != nil {
		t.Fatalf("maybeApply with dryRun=true returned error: %v", err)
	}
	got, ok := result.(planmodel.Plan)
	if !ok {
		t.Fatalf("maybeApply with dryRun=true returned %T, want planmodel.Plan", result)
	}
	if got.PlanType != planmodel.KindRename {
		t.Errorf("maybeApply returned a modified plan: %+v", got)
	}
}

func TestHandlePruneRejectsUnsupportedTargetKind(t *testing.T) {
	env := newServerEnv(testConfig(), t.TempDir())
	raw, err := json.Marshal(pruneArgs{Target: struct {
		Kind     string `json:"kind"`
		Path     string `json:"path"`
		Selector *struct {
			Line       uint32 `json:"line"`
			Character  uint32 `json:"character"`
			SymbolName string `json:"symbolName"`
		} `json:"selector"`
	}{Kind: "module", Path: "a.go"}})
	if err != nil {
		t.Fatalf("marshaling test args: %v", err)
	}

	if _, err := env.handlePrune(context.Background(), raw); err == nil {
		t.Error("handlePrune with an unsupported target kind returned no error")
	}
}

func TestHandleRenameAllFileKindRenamesInPlace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "helpers.go")
	if err := os.WriteFile(src, []byte("package helpers\n\nfunc Process() {}\n"), 0o644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}

	env := newServerEnv(testConfig(), dir)
	raw, err := json.Marshal(renameAllArgs{
		Target:  targetArg{Kind: "file", Path: src},
		NewName: "support.go",
		Options: struct {
			DryRun bool `json:"dryRun"`
		}{DryRun: true},
	})
	if err != nil {
		t.Fatalf("marshaling test args: %v", err)
	}

	result, err := env.handleRenameAll(context.Background(), raw)
	if err != nil {
		t.Fatalf("handleRenameAll with kind \"file\" returned error: %v", err)
	}
	plan, ok := result.(planmodel.Plan)
	if !ok {
		t.Fatalf("handleRenameAll returned %T, want planmodel.Plan", result)
	}
	if plan.PlanType != planmodel.KindMove {
		t.Errorf("plan.PlanType = %v, want KindMove", plan.PlanType)
	}
	if len(plan.Edits) == 0 || plan.Edits[0].NewPath != filepath.Join(dir, "support.go") {
		t.Errorf("plan.Edits[0] = %+v, want a move edit to %s", plan.Edits[0], filepath.Join(dir, "support.go"))
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("dryRun plan should not have touched the filesystem, but stat(%s) failed: %v", src, err)
	}
}

func TestHandleRenameAllRejectsUnsupportedTargetKind(t *testing.T) {
	env := newServerEnv(testConfig(), t.TempDir())
	raw, err := json.Marshal(renameAllArgs{Target: targetArg{Kind: "module", Path: "a.go"}, NewName: "b"})
	if err != nil {
		t.Fatalf("marshaling test args: %v", err)
	}

	if _, err := env.handleRenameAll(context.Background(), raw); err == nil {
		t.Error("handleRenameAll with an unsupported target kind returned no error")
	}
}
