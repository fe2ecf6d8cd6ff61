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
	"github.com/bennypowers/millwright/internal/langplugin/markdown"
	"github.com/bennypowers/millwright/internal/langplugin/typescript"
	"github.com/bennypowers/millwright/internal/planbuilder"
	"github.com/bennypowers/millwright/internal/planmodel"
	"github.com/bennypowers/millwright/internal/plugin"
)

func TestPlanMoveRequiresDestination(t *testing.T) {
	p := planbuilder.NewMovePlanner(plugin.NewRegistry(false), nil, t.TempDir())

	_, err := p.PlanMove(context.Background(), planbuilder.RelocateTarget{Kind: "file", Path: "a.md"})
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.InvalidRequest, e.Kind)
}

func TestPlanMoveRejectsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.md")
	dest := filepath.Join(dir, "b.md")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(dest, []byte("b"), 0o644))

	p := planbuilder.NewMovePlanner(plugin.NewRegistry(false), nil, dir)
	_, err := p.PlanMove(context.Background(), planbuilder.RelocateTarget{Kind: "file", Path: src, Destination: dest})
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.Conflict, e.Kind)
}

func TestPlanMoveRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))

	p := planbuilder.NewMovePlanner(plugin.NewRegistry(false), nil, dir)
	_, err := p.PlanMove(context.Background(), planbuilder.RelocateTarget{
		Kind: "package", Path: src, Destination: filepath.Join(dir, "b.md"),
	})
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.InvalidRequest, e.Kind)
}

func TestPlanMoveFileWithoutUpdateImportsOnlyMovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.md")
	dest := filepath.Join(dir, "b.md")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	registry := plugin.NewRegistry(false)
	registry.Register(markdown.New())
	p := planbuilder.NewMovePlanner(registry, importgraph.NewScanner(registry, dir), dir)

	plan, err := p.PlanMove(context.Background(), planbuilder.RelocateTarget{Kind: "file", Path: src, Destination: dest})
	require.NoError(t, err)
	require.Equal(t, planmodel.KindMove, plan.PlanType)
	require.Len(t, plan.Edits, 1)
	require.Equal(t, planmodel.EditMove, plan.Edits[0].Kind)
	require.Equal(t, dest, plan.Edits[0].NewPath)
	require.Equal(t, []string{src}, plan.AffectedFiles)
}

func TestPlanMoveFileWithUpdateImportsRewritesDependents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old.ts")
	dest := filepath.Join(dir, "sub", "new.ts")
	dependent := filepath.Join(dir, "index.ts")
	require.NoError(t, os.WriteFile(src, []byte("export const x = 1;\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dependent, []byte(`import { x } from "./old";
`), 0o644))

	registry := plugin.NewRegistry(false)
	registry.Register(typescript.New())
	p := planbuilder.NewMovePlanner(registry, importgraph.NewScanner(registry, dir), dir)

	plan, err := p.PlanMove(context.Background(), planbuilder.RelocateTarget{
		Kind: "file", Path: src, Destination: dest, UpdateImports: true,
	})
	require.NoError(t, err)
	require.Len(t, plan.Edits, 2)
	require.Contains(t, plan.AffectedFiles, dependent)

	var dependentEdit *planmodel.Edit
	for i := range plan.Edits {
		if plan.Edits[i].File == dependent {
			dependentEdit = &plan.Edits[i]
		}
	}
	require.NotNil(t, dependentEdit)
	require.Equal(t, planmodel.EditReplace, dependentEdit.Kind)
	require.Contains(t, dependentEdit.NewText, "./sub/new")
}

func TestPlanMoveDirectoryWarnsBestEffort(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "pkg")
	destDir := filepath.Join(dir, "moved")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.md"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.md"), []byte("b"), 0o644))

	p := planbuilder.NewMovePlanner(plugin.NewRegistry(false), nil, dir)
	plan, err := p.PlanMove(context.Background(), planbuilder.RelocateTarget{Kind: "directory", Path: srcDir, Destination: destDir})
	require.NoError(t, err)
	require.Len(t, plan.Edits, 2)
	require.NotEmpty(t, plan.Warnings)
	require.Equal(t, planmodel.WarningBestEffortScan, plan.Warnings[0].Code)
	for _, e := range plan.Edits {
		require.Equal(t, planmodel.EditMove, e.Kind)
	}
}
