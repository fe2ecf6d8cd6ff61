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

package rust_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bennypowers/millwright/internal/langplugin/rust"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindAffectedFilesCrateDirectoryRename(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "old_crate/Cargo.toml"),
		"[package]\nname = \"old_crate\"\nversion = \"0.1.0\"\nedition = \"2021\"\n")
	write(t, filepath.Join(root, "old_crate/src/lib.rs"), "pub fn utility() {}\n")

	write(t, filepath.Join(root, "app/Cargo.toml"),
		"[package]\nname = \"app\"\nversion = \"0.1.0\"\nedition = \"2021\"\n")
	write(t, filepath.Join(root, "app/src/main.rs"),
		"use old_crate::utility;\n\nfn main() {\n    utility();\n}\n")

	oldPath := filepath.Join(root, "old_crate")
	newPath := filepath.Join(root, "new_crate")
	projectFiles := []string{
		filepath.Join(root, "old_crate/src/lib.rs"),
		filepath.Join(root, "app/src/main.rs"),
	}

	p := rust.New()
	adv, ok := p.ImportAdvancedSupport()
	require.True(t, ok)

	affected, err := adv.FindAffectedFiles(context.Background(), root, oldPath, newPath, projectFiles)
	require.NoError(t, err)
	require.Contains(t, affected, filepath.Join(root, "app/src/main.rs"))
}

func TestFindAffectedFilesCrateRelativeImport(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "Cargo.toml"),
		"[package]\nname = \"test_project\"\nversion = \"0.1.0\"\nedition = \"2021\"\n")
	write(t, filepath.Join(root, "src/lib.rs"),
		"pub mod utils;\n\nuse utils::helpers::process;\n\npub fn lib_fn() {\n    process();\n}\n")
	write(t, filepath.Join(root, "src/utils/mod.rs"),
		"pub mod helpers;\n\npub fn utils_fn() {\n    helpers::process();\n}\n")
	write(t, filepath.Join(root, "src/utils/helpers.rs"), "pub fn process() {}\n")

	oldPath := filepath.Join(root, "src/utils/helpers.rs")
	newPath := filepath.Join(root, "src/utils/support.rs")
	projectFiles := []string{
		filepath.Join(root, "src/lib.rs"),
		filepath.Join(root, "src/utils/mod.rs"),
		filepath.Join(root, "src/utils/helpers.rs"),
	}

	p := rust.New()
	adv, ok := p.ImportAdvancedSupport()
	require.True(t, ok)

	affected, err := adv.FindAffectedFiles(context.Background(), root, oldPath, newPath, projectFiles)
	require.NoError(t, err)
	require.Contains(t, affected, filepath.Join(root, "src/lib.rs"))
	require.Contains(t, affected, filepath.Join(root, "src/utils/mod.rs"))
}

func TestRewriteImportsForMoveUpdatesRelativeUseDeclaration(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "Cargo.toml"),
		"[package]\nname = \"test_project\"\nversion = \"0.1.0\"\nedition = \"2021\"\n")
	write(t, filepath.Join(root, "src/utils/mod.rs"),
		"pub mod helpers;\n\npub fn utils_fn() {\n    helpers::process();\n}\n")
	libContent := "pub mod utils;\n\nuse utils::helpers::process;\n\npub fn lib_fn() {\n    process();\n}\n"
	write(t, filepath.Join(root, "src/lib.rs"), libContent)
	write(t, filepath.Join(root, "src/utils/helpers.rs"), "pub fn process() {}\n")

	oldPath := filepath.Join(root, "src/utils/helpers.rs")
	newPath := filepath.Join(root, "src/utils/support.rs")

	p := rust.New()
	mv, ok := p.ImportMoveSupport()
	require.True(t, ok)

	rewritten, count, err := mv.RewriteImportsForMove([]byte(libContent), oldPath, newPath)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Contains(t, string(rewritten), "use utils::support::process;")
}

func TestRewriteImportsForRenameSwapsFinalModuleSegment(t *testing.T) {
	p := rust.New()
	rn, ok := p.ImportRenameSupport()
	require.True(t, ok)

	content := "use crate::helpers::process;\nuse super::helpers::other;\nuse helpers::direct;\n"
	rewritten, count, err := rn.RewriteImportsForRename([]byte(content), "helpers", "support")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Contains(t, string(rewritten), "use crate::support::process;")
	require.Contains(t, string(rewritten), "use super::support::other;")
	require.Contains(t, string(rewritten), "use support::direct;")
}

func TestAddWorkspaceMemberAppendsToExistingArray(t *testing.T) {
	p := rust.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	content := "[workspace]\nmembers = [\"crates/foo\", \"crates/bar\"]\n"
	updated, err := mu.AddWorkspaceMember([]byte(content), "crates/baz")
	require.NoError(t, err)
	require.Contains(t, string(updated), `"crates/baz"`)
	require.Contains(t, string(updated), `"crates/foo"`)
}

func TestIsWorkspaceManifest(t *testing.T) {
	p := rust.New()
	mu, ok := p.ManifestUpdater()
	require.True(t, ok)

	require.True(t, mu.IsWorkspaceManifest([]byte("[workspace]\nmembers = []\n")))
	require.False(t, mu.IsWorkspaceManifest([]byte("[package]\nname = \"foo\"\n")))
}
