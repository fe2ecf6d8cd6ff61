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

package manifestmgr_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/langplugin/golang"
	"github.com/bennypowers/millwright/internal/langplugin/typescript"
	"github.com/bennypowers/millwright/internal/manifestmgr"
	"github.com/bennypowers/millwright/internal/plugin"
)

func newManager() *manifestmgr.Manager {
	reg := plugin.NewRegistry(false)
	reg.Register(golang.New())
	reg.Register(typescript.New())
	return manifestmgr.New(reg)
}

func TestFindWorkspaceManifestWalksUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.work"), []byte("go 1.22\nuse ./foo\n"), 0o644))

	nested := filepath.Join(root, "foo", "bar")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	m := newManager()
	path, content, err := m.FindWorkspaceManifest(nested)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "go.work"), path)
	require.Contains(t, string(content), "use ./foo")
}

func TestFindWorkspaceManifestReturnsNotFoundWhenNoneExists(t *testing.T) {
	root := t.TempDir()
	m := newManager()
	_, _, err := m.FindWorkspaceManifest(root)
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.NotFound, e.Kind)
}

func TestAddWorkspaceMemberDispatchesToOwningPlugin(t *testing.T) {
	root := t.TempDir()
	manifestPath := filepath.Join(root, "package.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`{"name":"root","workspaces":["packages/a"]}`), 0o644))

	m := newManager()
	out, err := m.AddWorkspaceMember(manifestPath, "packages/b")
	require.NoError(t, err)
	require.Contains(t, string(out), "packages/b")
}

func TestWorkspaceMembersExpandsDoubleStarGlobs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "packages", "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "packages", "b"), 0o755))

	manifestPath := filepath.Join(root, "package.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`{"workspaces":["packages/*"]}`), 0o644))

	m := newManager()
	members, err := m.WorkspaceMembers(manifestPath, root)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(root, "packages", "a"),
		filepath.Join(root, "packages", "b"),
	}, members)
}

func TestExtractDependenciesRejectsCrossLanguage(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "Cargo.toml")
	target := filepath.Join(root, "package.json")
	require.NoError(t, os.WriteFile(source, []byte("[package]\nname = \"demo\"\n"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte(`{"name":"demo"}`), 0o644))

	m := newManager()
	_, err := m.ExtractDependencies(source, target, plugin.ExtractOptions{})
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.NotSupported, e.Kind)
}
