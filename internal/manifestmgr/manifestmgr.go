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

// Package manifestmgr is the Manifest Manager (spec §3/§4.F): discovers
// workspace member manifests (go.work, Cargo.toml [workspace], a
// package.json's "workspaces" field) and dispatches add/remove/update/
// extract operations to the owning language plugin's ManifestUpdater/
// WorkspaceSupport. Grounded on the teacher's own
// workspace/discovery.go (DiscoverWorkspacePackages), generalized from a
// package.json-only, filepath.Glob-based walk to a doublestar/v4 walk
// that also covers Go workspace manifests (Cargo.toml is found by
// FindWorkspaceManifest and edited through ManifestUpdater, but member
// listing and dependency extraction for it report NotSupported, since
// the Rust plugin has no WorkspaceSupport), since the pack's own
// bmatcuk/doublestar/v4 dependency gives "**"-capable globbing that
// filepath.Glob's single-level "*" can't express.
package manifestmgr

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/plugin"
)

// Candidate manifest filenames searched from a starting directory
// upward to locate the nearest workspace root, in priority order.
var manifestNames = []string{"go.work", "Cargo.toml", "package.json"}

// Manager resolves manifests to their owning plugin and performs
// workspace-membership and dependency edits through it.
type Manager struct {
	Registry *plugin.Registry
}

// New builds a Manager over a plugin registry.
func New(registry *plugin.Registry) *Manager {
	return &Manager{Registry: registry}
}

// FindWorkspaceManifest walks upward from startDir looking for the
// nearest manifest whose ManifestUpdater reports IsWorkspaceManifest,
// trying each candidate filename at each directory level before
// ascending, mirroring the priority order manifestNames declares.
func (m *Manager) FindWorkspaceManifest(startDir string) (path string, content []byte, err error) {
	dir := startDir
	for {
		for _, name := range manifestNames {
			candidate := filepath.Join(dir, name)
			content, readErr := os.ReadFile(candidate)
			if readErr != nil {
				continue
			}
			ext := extensionForManifest(name)
			pl, err := m.Registry.Get(ext)
			if err != nil {
				continue
			}
			updater, ok := pl.ManifestUpdater()
			if !ok {
				continue
			}
			if updater.IsWorkspaceManifest(content) {
				return candidate, content, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil, corexerr.New(corexerr.NotFound, "no workspace manifest found above %s", startDir)
}

// AddWorkspaceMember adds member to the workspace manifest at manifestPath,
// dispatching to the owning plugin by the manifest's own extension.
func (m *Manager) AddWorkspaceMember(manifestPath, member string) ([]byte, error) {
	return m.withUpdater(manifestPath, func(u plugin.ManifestUpdater, content []byte) ([]byte, error) {
		return u.AddWorkspaceMember(content, member)
	})
}

// RemoveWorkspaceMember removes member from the workspace manifest at
// manifestPath.
func (m *Manager) RemoveWorkspaceMember(manifestPath, member string) ([]byte, error) {
	return m.withUpdater(manifestPath, func(u plugin.ManifestUpdater, content []byte) ([]byte, error) {
		return u.RemoveWorkspaceMember(content, member)
	})
}

// UpdateDependency rewrites name's version constraint in the manifest at
// manifestPath.
func (m *Manager) UpdateDependency(manifestPath, name, version string) ([]byte, error) {
	return m.withUpdater(manifestPath, func(u plugin.ManifestUpdater, content []byte) ([]byte, error) {
		return u.UpdateDependency(content, name, version)
	})
}

// ExtractDependencies copies dependencies from the manifest at
// sourcePath into the manifest at targetPath, both of which must belong
// to the same language (a cross-language extract is a NotSupported
// error, not a best-effort guess).
func (m *Manager) ExtractDependencies(sourcePath, targetPath string, opts plugin.ExtractOptions) (plugin.ExtractResult, error) {
	sourceExt := extensionForManifest(filepath.Base(sourcePath))
	targetExt := extensionForManifest(filepath.Base(targetPath))
	if sourceExt != targetExt {
		return plugin.ExtractResult{}, corexerr.New(corexerr.NotSupported,
			"cannot extract dependencies between manifests of different languages (%s -> %s)", sourceExt, targetExt)
	}

	pl, err := m.Registry.Get(targetExt)
	if err != nil {
		return plugin.ExtractResult{}, err
	}
	support, ok := pl.WorkspaceSupport()
	if !ok {
		return plugin.ExtractResult{}, corexerr.New(corexerr.NotSupported, "%s plugin does not support dependency extraction", pl.Name())
	}

	sourceContent, err := os.ReadFile(sourcePath)
	if err != nil {
		return plugin.ExtractResult{}, corexerr.Wrap(corexerr.NotFound, err, "reading %s", sourcePath)
	}
	targetContent, err := os.ReadFile(targetPath)
	if err != nil {
		return plugin.ExtractResult{}, corexerr.Wrap(corexerr.NotFound, err, "reading %s", targetPath)
	}

	return support.ExtractDependencies(sourceContent, targetContent, opts)
}

// WorkspaceMembers lists the member paths declared by the workspace
// manifest at manifestPath, expanding any "**"-style glob the manifest's
// language uses for member patterns (package.json's "workspaces" array,
// in particular) via doublestar/v4 against rootDir.
func (m *Manager) WorkspaceMembers(manifestPath, rootDir string) ([]string, error) {
	content, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, corexerr.Wrap(corexerr.NotFound, err, "reading %s", manifestPath)
	}
	ext := extensionForManifest(filepath.Base(manifestPath))
	pl, err := m.Registry.Get(ext)
	if err != nil {
		return nil, err
	}
	support, ok := pl.WorkspaceSupport()
	if !ok {
		return nil, corexerr.New(corexerr.NotSupported, "%s plugin does not support workspace member discovery", pl.Name())
	}

	patterns, err := support.WorkspaceMembers(rootDir, content)
	if err != nil {
		return nil, err
	}
	return expandMemberPatterns(rootDir, patterns)
}

// expandMemberPatterns resolves each pattern against rootDir, expanding
// "**" globs with doublestar/v4 (filepath.Glob only supports a single
// "*" per segment) and passing plain directory paths through unchanged.
func expandMemberPatterns(rootDir string, patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[") {
			abs := filepath.Join(rootDir, pattern)
			if info, err := os.Stat(abs); err == nil && info.IsDir() {
				if !seen[abs] {
					out = append(out, abs)
					seen[abs] = true
				}
			}
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(rootDir), pattern)
		if err != nil {
			return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "invalid workspace member pattern %q", pattern)
		}
		for _, match := range matches {
			abs := filepath.Join(rootDir, match)
			info, err := os.Stat(abs)
			if err != nil || !info.IsDir() {
				continue
			}
			if !seen[abs] {
				out = append(out, abs)
				seen[abs] = true
			}
		}
	}
	return out, nil
}

func (m *Manager) withUpdater(manifestPath string, edit func(plugin.ManifestUpdater, []byte) ([]byte, error)) ([]byte, error) {
	ext := extensionForManifest(filepath.Base(manifestPath))
	pl, err := m.Registry.Get(ext)
	if err != nil {
		return nil, err
	}
	updater, ok := pl.ManifestUpdater()
	if !ok {
		return nil, corexerr.New(corexerr.NotSupported, "%s plugin does not support manifest edits", pl.Name())
	}
	content, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, corexerr.Wrap(corexerr.NotFound, err, "reading %s", manifestPath)
	}
	return edit(updater, content)
}

func extensionForManifest(name string) string {
	switch name {
	case "go.mod", "go.work":
		return ".go"
	case "Cargo.toml":
		return ".rs"
	case "package.json":
		return ".ts"
	default:
		return ""
	}
}

