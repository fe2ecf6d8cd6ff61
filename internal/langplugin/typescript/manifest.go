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

// package.json manifest support, mirroring golang.go's modfile-based
// ManifestUpdater/WorkspaceSupport pair but for npm/pnpm/yarn workspaces.
// gjson reads fields without unmarshaling the whole document (package.json
// files commonly carry fields no Go struct models, and round-tripping
// through encoding/json would silently drop them); sjson writes a single
// field back in place, preserving key order and everything else byte for
// byte, the same "surgical edit" property modfile.Format gives the Go
// plugin and the Rust plugin's own byte-splice approach gives Cargo.toml.
package typescript

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/bennypowers/millwright/internal/plugin"
)

func (p *Plugin) ManifestUpdater() (plugin.ManifestUpdater, bool)   { return manifestUpdater{}, true }
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return workspaceSupport{}, true }

type manifestUpdater struct{}

// IsWorkspaceManifest reports whether content is a package.json declaring
// a "workspaces" field (npm/yarn) — the only shape that makes a
// package.json a workspace root rather than a plain package manifest.
func (manifestUpdater) IsWorkspaceManifest(content []byte) bool {
	return gjson.GetBytes(content, "workspaces").Exists()
}

// AddWorkspaceMember appends member to the "workspaces" array, which may
// be either a bare array of globs or an object with a "packages" array
// (the pnpm/Yarn Berry "workspaces": {"packages": [...]}  shape); the
// plain array form is used unless the existing document already uses the
// object form.
func (manifestUpdater) AddWorkspaceMember(content []byte, member string) ([]byte, error) {
	path, existing := workspacesArrayPath(content)
	for _, m := range existing {
		if m.String() == member {
			return content, nil
		}
	}
	return sjson.SetBytes(content, path+".-1", member)
}

// RemoveWorkspaceMember deletes member from the "workspaces" array,
// leaving every other entry and all other document formatting untouched.
func (manifestUpdater) RemoveWorkspaceMember(content []byte, member string) ([]byte, error) {
	path, existing := workspacesArrayPath(content)
	out := content
	for i := len(existing) - 1; i >= 0; i-- {
		if existing[i].String() != member {
			continue
		}
		updated, err := sjson.DeleteBytes(out, fmt.Sprintf("%s.%d", path, i))
		if err != nil {
			return nil, err
		}
		out = updated
	}
	return out, nil
}

// UpdateDependency rewrites name's version constraint, preferring
// "dependencies" but falling back to "devDependencies" when that's where
// name is already declared, and defaulting to "dependencies" for a
// not-yet-declared name.
func (manifestUpdater) UpdateDependency(content []byte, name, version string) ([]byte, error) {
	field := "dependencies"
	if gjson.GetBytes(content, "devDependencies."+gjsonEscape(name)).Exists() {
		field = "devDependencies"
	}
	return sjson.SetBytes(content, field+"."+gjsonEscape(name), version)
}

// workspacesArrayPath resolves the gjson/sjson path to the workspaces
// array itself, handling both the bare-array and {"packages": [...]}
// shapes, and returns its current elements.
func workspacesArrayPath(content []byte) (string, []gjson.Result) {
	if packages := gjson.GetBytes(content, "workspaces.packages"); packages.IsArray() {
		return "workspaces.packages", packages.Array()
	}
	return "workspaces", gjson.GetBytes(content, "workspaces").Array()
}

// gjsonEscape escapes path-metacharacters (".", "*", "?") in a raw JSON
// key so it can be embedded as one path segment, per gjson/sjson's path
// syntax (scoped package names like "@scope/name" need no escaping since
// "/" and "@" aren't path metacharacters).
func gjsonEscape(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}

type workspaceSupport struct{}

// ExtractDependencies copies entries from source's "dependencies" and
// "devDependencies" into target's matching sections (only the entries
// named in opts.Names, when it is non-empty), leaving versions as
// declared in source unless
// opts.PreserveVersions is false, in which case every copied entry is
// pinned to "*" the way a fresh workspace-member package.json typically
// starts.
func (workspaceSupport) ExtractDependencies(sourceContent, targetContent []byte, opts plugin.ExtractOptions) (plugin.ExtractResult, error) {
	wanted := make(map[string]bool, len(opts.Names))
	for _, n := range opts.Names {
		wanted[n] = true
	}

	out := targetContent
	var added []string
	for _, section := range []string{"dependencies", "devDependencies"} {
		gjson.GetBytes(sourceContent, section).ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if len(wanted) > 0 && !wanted[name] {
				return true
			}
			version := value.String()
			if !opts.PreserveVersions {
				version = "*"
			}
			updated, err := sjson.SetBytes(out, section+"."+gjsonEscape(name), version)
			if err != nil {
				return true
			}
			out = updated
			added = append(added, name)
			return true
		})
	}
	return plugin.ExtractResult{TargetContent: out, Added: added}, nil
}

// WorkspaceMembers returns the declared "workspaces" globs verbatim
// (relative to rootDir); the Manifest Manager expands any "**" pattern
// via doublestar, since gjson/sjson operate on JSON structure, not glob
// semantics.
func (workspaceSupport) WorkspaceMembers(rootDir string, content []byte) ([]string, error) {
	_, entries := workspacesArrayPath(content)
	members := make([]string, 0, len(entries))
	for _, e := range entries {
		members = append(members, filepath.ToSlash(e.String()))
	}
	return members, nil
}
