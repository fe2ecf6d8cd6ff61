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

// Package golang is the Go language plugin (spec §3/§4.A). Import parsing
// uses go/parser in ImportsOnly mode — the canonical, edit-preserving-free
// way every Go tool reads an import block; manifest edits go through
// golang.org/x/mod/modfile, which is genuinely format-preserving (it keeps
// comments, replace directives, and require-block grouping intact on
// re-encode), the same module the teacher's own go.mod dependency closure
// already pulls in transitively.
package golang

import (
	"bytes"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/bennypowers/millwright/internal/plugin"
	"github.com/bennypowers/millwright/internal/planmodel"
)

// Plugin is the Go language plugin.
type Plugin struct {
	plugin.BasePlugin
}

// New constructs the Go plugin.
func New() *Plugin {
	return &Plugin{plugin.BasePlugin{PluginName: "go", PluginExtensions: []string{".go"}}}
}

func (p *Plugin) ImportParser() (plugin.ImportParser, bool)           { return parser_{}, true }
func (p *Plugin) ImportMoveSupport() (plugin.ImportMoveSupport, bool) { return mover{}, true }
func (p *Plugin) ManifestUpdater() (plugin.ManifestUpdater, bool)     { return manifestUpdater{}, true }
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool)   { return workspaceSupport{}, true }

type parser_ struct{}

func (parser_) ParseImports(content []byte) ([]plugin.ImportInfo, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ImportsOnly|parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var imports []plugin.ImportInfo
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			path = strings.Trim(imp.Path.Value, `"`)
		}
		startPos := fset.Position(imp.Pos())
		endPos := fset.Position(imp.End())

		info := plugin.ImportInfo{
			ModulePath: path,
			Kind:       plugin.ImportNative,
			Range: planmodel.Location{
				StartLine: uint32(startPos.Line - 1), StartColumn: uint32(startPos.Column - 1),
				EndLine: uint32(endPos.Line - 1), EndColumn: uint32(endPos.Column - 1),
			},
		}
		if imp.Name != nil {
			info.NamespaceBinding = imp.Name.Name
			if imp.Name.Name == "_" {
				info.Kind = plugin.ImportNative
			}
		}
		imports = append(imports, info)
	}
	return imports, nil
}

type mover struct{}

// RewriteImportsForMove updates import path strings whose prefix matches
// oldPath (a Go package import path, not a filesystem path) to newPath.
// The caller is responsible for translating filesystem paths to module
// import paths before calling this.
func (mover) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	text := string(content)
	oldQuoted := `"` + oldPath
	newQuoted := `"` + newPath
	count := strings.Count(text, oldQuoted)
	if count == 0 {
		return content, 0, nil
	}
	rewritten := strings.ReplaceAll(text, oldQuoted, newQuoted)
	return []byte(rewritten), count, nil
}

type manifestUpdater struct{}

// IsWorkspaceManifest reports whether content looks like a go.work file:
// go.mod never contains a top-level "use" directive.
func (manifestUpdater) IsWorkspaceManifest(content []byte) bool {
	for _, line := range bytes.Split(content, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if bytes.HasPrefix(trimmed, []byte("use ")) || bytes.Equal(trimmed, []byte("use (")) {
			return true
		}
	}
	return false
}

func (manifestUpdater) AddWorkspaceMember(content []byte, member string) ([]byte, error) {
	f, err := modfile.ParseWork("go.work", content, nil)
	if err != nil {
		return nil, err
	}
	for _, use := range f.Use {
		if use.Path == member {
			return content, nil
		}
	}
	if err := f.AddUse(member, ""); err != nil {
		return nil, err
	}
	f.Cleanup()
	return f.Format()
}

func (manifestUpdater) RemoveWorkspaceMember(content []byte, member string) ([]byte, error) {
	f, err := modfile.ParseWork("go.work", content, nil)
	if err != nil {
		return nil, err
	}
	if err := f.DropUse(member); err != nil {
		return nil, err
	}
	f.Cleanup()
	return f.Format()
}

func (manifestUpdater) UpdateDependency(content []byte, name, version string) ([]byte, error) {
	f, err := modfile.Parse("go.mod", content, nil)
	if err != nil {
		return nil, err
	}
	if err := f.AddRequire(name, version); err != nil {
		return nil, err
	}
	f.Cleanup()
	return f.Format()
}

type workspaceSupport struct{}

func (workspaceSupport) ExtractDependencies(sourceContent, targetContent []byte, opts plugin.ExtractOptions) (plugin.ExtractResult, error) {
	src, err := modfile.Parse("go.mod", sourceContent, nil)
	if err != nil {
		return plugin.ExtractResult{}, err
	}
	tgt, err := modfile.Parse("go.mod", targetContent, nil)
	if err != nil {
		return plugin.ExtractResult{}, err
	}

	wanted := make(map[string]bool, len(opts.Names))
	for _, n := range opts.Names {
		wanted[n] = true
	}

	var added []string
	var warnings []planmodel.Warning
	for _, req := range src.Require {
		if len(wanted) > 0 && !wanted[req.Mod.Path] {
			continue
		}
		version := req.Mod.Version
		if !opts.PreserveVersions {
			version = "v0.0.0"
		}
		if err := tgt.AddRequire(req.Mod.Path, version); err != nil {
			warnings = append(warnings, planmodel.Warning{
				Code:    planmodel.WarningBestEffortScan,
				Message: "could not extract dependency " + req.Mod.Path + ": " + err.Error(),
			})
			continue
		}
		added = append(added, req.Mod.Path)
	}
	tgt.Cleanup()
	out, err := tgt.Format()
	if err != nil {
		return plugin.ExtractResult{}, err
	}
	return plugin.ExtractResult{TargetContent: out, Added: added, Warnings: warnings}, nil
}

func (workspaceSupport) WorkspaceMembers(rootDir string, content []byte) ([]string, error) {
	f, err := modfile.ParseWork("go.work", content, nil)
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(f.Use))
	for _, use := range f.Use {
		members = append(members, filepath.Join(rootDir, use.Path))
	}
	return members, nil
}
