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

package typescript_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/bennypowers/millwright/internal/langplugin/typescript"
	"github.com/bennypowers/millwright/internal/plugin"
)

func TestIsWorkspaceManifestDetectsWorkspacesField(t *testing.T) {
	p := typescript.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	require.True(t, mu.IsWorkspaceManifest([]byte(`{"name":"root","workspaces":["packages/*"]}`)))
	require.False(t, mu.IsWorkspaceManifest([]byte(`{"name":"leaf","version":"1.0.0"}`)))
}

func TestAddWorkspaceMemberAppendsToArray(t *testing.T) {
	p := typescript.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	src := []byte(`{"name":"root","workspaces":["packages/a"]}`)
	out, err := mu.AddWorkspaceMember(src, "packages/b")
	require.NoError(t, err)

	members := gjson.GetBytes(out, "workspaces").Array()
	require.Len(t, members, 2)
	require.Equal(t, "packages/a", members[0].String())
	require.Equal(t, "packages/b", members[1].String())
	require.Equal(t, "root", gjson.GetBytes(out, "name").String(), "unrelated fields must survive the edit")
}

func TestAddWorkspaceMemberIsIdempotent(t *testing.T) {
	p := typescript.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	src := []byte(`{"workspaces":["packages/a"]}`)
	out, err := mu.AddWorkspaceMember(src, "packages/a")
	require.NoError(t, err)
	require.Len(t, gjson.GetBytes(out, "workspaces").Array(), 1)
}

func TestAddWorkspaceMemberHandlesPackagesObjectForm(t *testing.T) {
	p := typescript.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	src := []byte(`{"workspaces":{"packages":["packages/a"]}}`)
	out, err := mu.AddWorkspaceMember(src, "packages/b")
	require.NoError(t, err)

	members := gjson.GetBytes(out, "workspaces.packages").Array()
	require.Len(t, members, 2)
	require.Equal(t, "packages/b", members[1].String())
}

func TestRemoveWorkspaceMemberDeletesMatchingEntry(t *testing.T) {
	p := typescript.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	src := []byte(`{"workspaces":["packages/a","packages/b","packages/c"]}`)
	out, err := mu.RemoveWorkspaceMember(src, "packages/b")
	require.NoError(t, err)

	members := gjson.GetBytes(out, "workspaces").Array()
	require.Len(t, members, 2)
	require.Equal(t, "packages/a", members[0].String())
	require.Equal(t, "packages/c", members[1].String())
}

func TestUpdateDependencyRewritesExistingVersion(t *testing.T) {
	p := typescript.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	src := []byte(`{"name":"demo","dependencies":{"lodash":"^4.0.0"}}`)
	out, err := mu.UpdateDependency(src, "lodash", "^4.17.21")
	require.NoError(t, err)
	require.Equal(t, "^4.17.21", gjson.GetBytes(out, "dependencies.lodash").String())
}

func TestUpdateDependencyPrefersDevDependenciesWhenAlreadyThere(t *testing.T) {
	p := typescript.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	src := []byte(`{"devDependencies":{"typescript":"^5.0.0"}}`)
	out, err := mu.UpdateDependency(src, "typescript", "^5.4.0")
	require.NoError(t, err)
	require.Equal(t, "^5.4.0", gjson.GetBytes(out, "devDependencies.typescript").String())
	require.False(t, gjson.GetBytes(out, "dependencies.typescript").Exists())
}

func TestUpdateDependencyHandlesScopedPackageNames(t *testing.T) {
	p := typescript.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	src := []byte(`{"dependencies":{}}`)
	out, err := mu.UpdateDependency(src, "@scope/pkg", "^1.0.0")
	require.NoError(t, err)
	require.Equal(t, "^1.0.0", gjson.GetBytes(out, "dependencies").Get(`@scope/pkg`).String())
}

func TestWorkspaceMembersReturnsDeclaredGlobs(t *testing.T) {
	p := typescript.New()
	ws, ok := p.WorkspaceSupport()
	require.True(t, ok)

	src := []byte(`{"workspaces":["packages/*","apps/**"]}`)
	members, err := ws.WorkspaceMembers("", src)
	require.NoError(t, err)
	require.Equal(t, []string{"packages/*", "apps/**"}, members)
}

func TestExtractDependenciesCopiesNamedEntries(t *testing.T) {
	p := typescript.New()
	ws, ok := p.WorkspaceSupport()
	require.True(t, ok)

	source := []byte(`{"dependencies":{"lodash":"^4.17.21","react":"^18.0.0"},"devDependencies":{"typescript":"^5.0.0"}}`)
	target := []byte(`{"name":"leaf","dependencies":{}}`)

	result, err := ws.ExtractDependencies(source, target, plugin.ExtractOptions{
		PreserveVersions: true,
		Names:            []string{"lodash", "typescript"},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"lodash", "typescript"}, result.Added)
	require.Equal(t, "^4.17.21", gjson.GetBytes(result.TargetContent, "dependencies.lodash").String())
	require.Equal(t, "^5.0.0", gjson.GetBytes(result.TargetContent, "devDependencies.typescript").String())
	require.False(t, gjson.GetBytes(result.TargetContent, "dependencies.react").Exists())
}

func TestExtractDependenciesPinsWildcardWhenVersionsNotPreserved(t *testing.T) {
	p := typescript.New()
	ws, ok := p.WorkspaceSupport()
	require.True(t, ok)

	source := []byte(`{"dependencies":{"lodash":"^4.17.21"}}`)
	target := []byte(`{"dependencies":{}}`)

	result, err := ws.ExtractDependencies(source, target, plugin.ExtractOptions{PreserveVersions: false})
	require.NoError(t, err)
	require.Equal(t, "*", gjson.GetBytes(result.TargetContent, "dependencies.lodash").String())
}
