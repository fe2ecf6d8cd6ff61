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

package planbuilder_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/importgraph"
	"github.com/bennypowers/millwright/internal/planbuilder"
	"github.com/bennypowers/millwright/internal/planmodel"
	"github.com/bennypowers/millwright/internal/plugin"
)

func newPrunePlanner(t *testing.T, root string) *planbuilder.PrunePlanner {
	t.Helper()
	registry := plugin.NewRegistry(false)
	scanner := importgraph.NewScanner(registry, root)
	return planbuilder.NewPrunePlanner(registry, scanner, root)
}

func TestPlanSymbolDeleteRequiresSelector(t *testing.T) {
	root := t.TempDir()
	p := newPrunePlanner(t, root)

	_, err := p.PlanSymbolDelete(context.Background(), planbuilder.PruneTarget{
		Kind: "symbol",
		Path: filepath.Join(root, "main.go"),
	})
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.InvalidRequest, e.Kind)
}

func TestPlanSymbolDeleteNoPluginForExtensionIsNotSupported(t *testing.T) {
	root := t.TempDir()
	p := newPrunePlanner(t, root)

	_, err := p.PlanSymbolDelete(context.Background(), planbuilder.PruneTarget{
		Kind:     "symbol",
		Path:     filepath.Join(root, "main.go"),
		Selector: &planbuilder.PruneSelector{Line: 3, Character: 1},
	})
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.NotSupported, e.Kind)
}

func TestPlanFileDeleteBuildsDeletionAndChecksum(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "doomed.go")
	require.NoError(t, os.WriteFile(target, []byte("package root\n"), 0o644))

	p := newPrunePlanner(t, root)
	plan, err := p.PlanFileDelete(context.Background(), planbuilder.PruneTarget{Kind: "file", Path: target}, planbuilder.PruneOptions{})
	require.NoError(t, err)

	require.Equal(t, planmodel.KindDelete, plan.PlanType)
	require.Len(t, plan.Deletions, 1)
	require.Equal(t, target, plan.Deletions[0].File)
	_, ok := plan.FileChecksums[target]
	require.True(t, ok)
}

func TestPlanDirectoryDeleteWarnsOnCargoPackage(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "crate")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "Cargo.toml"), []byte("[package]\nname = \"crate\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "lib.rs"), []byte("pub fn f() {}\n"), 0o644))

	p := newPrunePlanner(t, root)
	plan, err := p.PlanDirectoryDelete(context.Background(), planbuilder.PruneTarget{Kind: "directory", Path: pkg}, planbuilder.PruneOptions{})
	require.NoError(t, err)

	require.Equal(t, 2, plan.Summary.DeletedFiles)
	var sawCargoWarning bool
	for _, w := range plan.Warnings {
		if w.Code == planmodel.WarningPackageDelete {
			sawCargoWarning = true
		}
	}
	require.True(t, sawCargoWarning)
}
