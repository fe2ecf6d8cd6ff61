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

// Package rust is the Rust language plugin (spec §4.A/§3). Its affected-file
// detection is ported directly from the crate-rename and module-path scans
// in codebuddy's reference_updater/detectors/rust.rs: a directory rename
// triggers a crate-wide "use old_crate::" scan, while a file move compares
// the full dotted module path (crate-name plus position under src/) before
// and after, then scans for absolute, crate::, crate-relative, and
// super::/self:: references to the old module name.
package rust

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bennypowers/millwright/internal/plugin"
	"github.com/bennypowers/millwright/internal/planmodel"
)

// Plugin is the Rust language plugin.
type Plugin struct {
	plugin.BasePlugin
}

// New constructs the Rust plugin.
func New() *Plugin {
	return &Plugin{plugin.BasePlugin{PluginName: "rust", PluginExtensions: []string{".rs"}}}
}

func (p *Plugin) ImportParser() (plugin.ImportParser, bool)                     { return parser{}, true }
func (p *Plugin) ModuleReferenceScanner() (plugin.ModuleReferenceScanner, bool) { return scanner{}, true }
func (p *Plugin) ImportAdvancedSupport() (plugin.ImportAdvancedSupport, bool)   { return advanced{}, true }
func (p *Plugin) ManifestUpdater() (plugin.ManifestUpdater, bool)               { return manifestUpdater{}, true }
func (p *Plugin) ImportMoveSupport() (plugin.ImportMoveSupport, bool)           { return mover{}, true }
func (p *Plugin) ImportRenameSupport() (plugin.ImportRenameSupport, bool)       { return renamer{}, true }

type parser struct{}

// ParseImports extracts "use a::b::c;" statements, one per non-blank
// top-level use line; it does not expand brace-grouped multi-imports
// (use a::{b, c};) into separate ImportInfo entries, matching the
// reference detector's line-oriented textual approach.
func (parser) ParseImports(content []byte) ([]plugin.ImportInfo, error) {
	var imports []plugin.ImportInfo
	for lineNo, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "use ") {
			continue
		}
		path := strings.TrimPrefix(trimmed, "use ")
		path = strings.TrimSuffix(strings.TrimSpace(path), ";")
		imports = append(imports, plugin.ImportInfo{
			ModulePath: path,
			Kind:       plugin.ImportNative,
			Range: planmodel.Location{
				StartLine: uint32(lineNo), StartColumn: 0,
				EndLine: uint32(lineNo), EndColumn: uint32(len(line)),
			},
		})
	}
	return imports, nil
}

type scanner struct{}

// ReferencesModule looks for a module reference outside use-declarations
// (fileHasModuleImport already covers those): a "pub mod name;"/"mod
// name;" declaration, or a bare "name::" path expression, matching the
// reference_updater/detectors/rust.rs gap where a module is only
// declared, never use'd, by its importer.
func (scanner) ReferencesModule(content []byte, modulePath string) bool {
	declPub := "pub mod " + modulePath + ";"
	decl := "mod " + modulePath + ";"
	callPattern := modulePath + "::"
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "use ") {
			continue
		}
		if strings.HasPrefix(trimmed, declPub) || strings.HasPrefix(trimmed, decl) {
			return true
		}
		if strings.Contains(trimmed, callPattern) {
			return true
		}
	}
	return false
}

type advanced struct{}

// FindAffectedFiles ports find_rust_affected_files from rust.rs.
func (advanced) FindAffectedFiles(ctx context.Context, projectRoot, oldPath, newPath string, projectFiles []string) ([]string, error) {
	oldIsDir := isDir(oldPath)

	oldCrate := crateNameForPath(oldPath, oldIsDir)
	newCrate := crateNameForPath(newPath, isDir(newPath))

	var affected []string
	seen := make(map[string]bool)
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			affected = append(affected, f)
		}
	}

	// Directory rename (crate rename): scan every .rs file outside the
	// renamed crate for "use old_crate::".
	if oldIsDir && oldCrate != "" && newCrate != "" && oldCrate != newCrate {
		pattern := "use " + oldCrate + "::"
		for _, file := range projectFiles {
			if within(file, oldPath) {
				continue
			}
			if filepath.Ext(file) != ".rs" {
				continue
			}
			content, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			if strings.Contains(string(content), pattern) {
				add(file)
			}
		}
		return affected, nil
	}

	if oldCrate == "" || newCrate == "" {
		return affected, nil
	}

	oldModulePath := computeModulePathFromFile(oldPath, oldCrate, projectRoot)
	newModulePath := computeModulePathFromFile(newPath, newCrate, projectRoot)
	if oldModulePath == newModulePath {
		return affected, nil
	}

	modulePattern := oldModulePath + "::"
	oldModuleName := lastSegment(oldModulePath)
	_, suffix, hasSuffix := strings.Cut(oldModulePath, "::")

	for _, file := range projectFiles {
		if file == oldPath || file == newPath {
			continue
		}
		if filepath.Ext(file) != ".rs" {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		if fileHasModuleImport(string(content), modulePattern, oldModuleName, suffix, hasSuffix) {
			add(file)
			continue
		}
		// Supplementary pass: a file can reference the renamed module
		// purely through a "pub mod name;" declaration or a bare
		// "name::" path, with no "use" line for fileHasModuleImport to
		// match (e.g. a parent mod.rs declaring a submodule it never
		// imports by name).
		if oldModuleName != "" && (scanner{}).ReferencesModule(content, oldModuleName) {
			add(file)
		}
	}
	return affected, nil
}

func fileHasModuleImport(content, modulePattern, oldModuleName, suffix string, hasSuffix bool) bool {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "use ") {
			continue
		}
		if strings.Contains(trimmed, modulePattern) {
			return true
		}
		if oldModuleName != "" {
			if strings.Contains(trimmed, "super::"+oldModuleName+"::") ||
				strings.Contains(trimmed, "self::"+oldModuleName+"::") ||
				strings.Contains(trimmed, "super::"+oldModuleName+"::*") ||
				strings.Contains(trimmed, "self::"+oldModuleName+"::*") {
				return true
			}
		}
		if hasSuffix {
			if strings.Contains(trimmed, "crate::"+suffix+"::") {
				return true
			}
			if strings.HasPrefix(trimmed, "use "+suffix+"::") {
				return true
			}
		}
	}
	return false
}

func lastSegment(modulePath string) string {
	parts := strings.Split(modulePath, "::")
	return parts[len(parts)-1]
}

func within(file, dir string) bool {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// crateNameForPath resolves a crate name for a path that may be a
// directory (its own Cargo.toml), an existing file (walk up to the
// nearest Cargo.toml), or a not-yet-existing rename destination (fall
// back to its base name), mirroring rust.rs's new_path handling.
func crateNameForPath(path string, isDirectory bool) string {
	if isDirectory {
		if name, ok := readCargoTomlName(filepath.Join(path, "Cargo.toml")); ok {
			return normalizeCrateName(name)
		}
		return normalizeCrateName(filepath.Base(path))
	}
	if _, err := os.Stat(path); err == nil {
		if name, ok := findCrateNameFromCargoToml(path); ok {
			return normalizeCrateName(name)
		}
	}
	return normalizeCrateName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

func normalizeCrateName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// findCrateNameFromCargoToml walks up from a file looking for the
// nearest Cargo.toml and reads its package name.
func findCrateNameFromCargoToml(path string) (string, bool) {
	dir := filepath.Dir(path)
	for {
		candidate := filepath.Join(dir, "Cargo.toml")
		if name, ok := readCargoTomlName(candidate); ok {
			return name, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func readCargoTomlName(cargoTomlPath string) (string, bool) {
	content, err := os.ReadFile(cargoTomlPath)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "name") && strings.Contains(trimmed, "=") {
			_, value, ok := strings.Cut(trimmed, "=")
			if !ok {
				continue
			}
			name := strings.Trim(strings.TrimSpace(value), `"'`)
			return name, true
		}
	}
	return "", false
}

// computeModulePathFromFile derives the dotted module path of a Rust
// source file: crateName, plus its position under src/ with lib.rs/
// mod.rs/main.rs stripped as the terminal segment.
func computeModulePathFromFile(path, crateName, projectRoot string) string {
	rel, err := filepath.Rel(projectRoot, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	idx := strings.Index(rel, "src/")
	if idx < 0 {
		return crateName
	}
	underSrc := strings.TrimSuffix(rel[idx+len("src/"):], ".rs")
	segments := strings.Split(underSrc, "/")

	last := segments[len(segments)-1]
	if last == "lib" || last == "mod" || last == "main" {
		segments = segments[:len(segments)-1]
	} else if len(segments) > 1 && segments[len(segments)-2] == last {
		// foo/foo.rs style (2018-edition module-as-directory): the
		// directory segment already names the module.
		segments = segments[:len(segments)-1]
	}

	if len(segments) == 0 {
		return crateName
	}
	return crateName + "::" + strings.Join(segments, "::")
}

type mover struct{}

// RewriteImportsForMove rewrites use-declarations and crate::/super::/
// self:: references from oldPath's module path to newPath's. oldPath and
// newPath are filesystem paths (the MovePlanner's own contract for
// plugins that don't register as a relative-specifier mover); the crate
// name and dotted module path are recomputed the same way
// FindAffectedFiles derives them, so a move's rewrite targets exactly
// the references that move's own detection pass would have flagged.
func (mover) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	oldModulePath := computeModulePathFromFile(oldPath, crateNameForPath(oldPath, isDir(oldPath)), crateRootForPath(oldPath))
	newModulePath := computeModulePathFromFile(newPath, crateNameForPath(newPath, isDir(newPath)), crateRootForPath(newPath))
	if oldModulePath == "" || newModulePath == "" || oldModulePath == newModulePath {
		return content, 0, nil
	}
	rewritten, count := rewriteModuleReferences(string(content), oldModulePath, newModulePath)
	return []byte(rewritten), count, nil
}

// rewriteModuleReferences is the write-side counterpart of
// fileHasModuleImport's detection: the same modulePattern/super::/
// self::/crate::suffix:: forms, rewritten in place rather than merely
// matched.
func rewriteModuleReferences(content, oldModulePath, newModulePath string) (string, int) {
	oldModuleName := lastSegment(oldModulePath)
	newModuleName := lastSegment(newModulePath)
	_, oldSuffix, hasSuffix := strings.Cut(oldModulePath, "::")
	_, newSuffix, _ := strings.Cut(newModulePath, "::")

	lines := strings.Split(content, "\n")
	count := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "use ") {
			continue
		}
		rewritten := line
		if strings.Contains(rewritten, oldModulePath+"::") {
			rewritten = strings.ReplaceAll(rewritten, oldModulePath+"::", newModulePath+"::")
		}
		if oldModuleName != "" && newModuleName != "" {
			rewritten = strings.ReplaceAll(rewritten, "super::"+oldModuleName+"::", "super::"+newModuleName+"::")
			rewritten = strings.ReplaceAll(rewritten, "self::"+oldModuleName+"::", "self::"+newModuleName+"::")
		}
		if hasSuffix {
			rewritten = strings.ReplaceAll(rewritten, "crate::"+oldSuffix+"::", "crate::"+newSuffix+"::")
			if strings.HasPrefix(strings.TrimSpace(rewritten), "use "+oldSuffix+"::") {
				rewritten = strings.Replace(rewritten, oldSuffix+"::", newSuffix+"::", 1)
			}
		}
		if rewritten != line {
			lines[i] = rewritten
			count++
		}
	}
	return strings.Join(lines, "\n"), count
}

// crateRootForPath walks up from path looking for the nearest Cargo.toml
// and returns its directory, the root computeModulePathFromFile expects
// so a file's "src/..." position resolves relative to its own crate
// rather than the whole workspace.
func crateRootForPath(path string) string {
	dir := filepath.Dir(path)
	for {
		if _, err := os.Stat(filepath.Join(dir, "Cargo.toml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Dir(path)
		}
		dir = parent
	}
}

type renamer struct{}

// RewriteImportsForRename swaps the final module-name segment oldName
// for newName wherever it's referenced in a use-declaration: crate::
// .../oldName::, super::oldName::, self::oldName::, and a bare "use
// oldName::" path. Used for an in-place file rename (same directory,
// new basename), where only the last module segment changes.
func (renamer) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	lines := strings.Split(string(content), "\n")
	count := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "use ") {
			continue
		}
		rewritten := line
		for _, prefix := range []string{"crate::", "super::", "self::"} {
			old := prefix + oldName + "::"
			if strings.Contains(rewritten, old) {
				rewritten = strings.ReplaceAll(rewritten, old, prefix+newName+"::")
			}
		}
		if strings.HasPrefix(trimmed, "use "+oldName+"::") {
			rewritten = strings.Replace(rewritten, oldName+"::", newName+"::", 1)
		}
		if rewritten != line {
			lines[i] = rewritten
			count++
		}
	}
	return []byte(strings.Join(lines, "\n")), count, nil
}

type manifestUpdater struct{}

func (manifestUpdater) IsWorkspaceManifest(content []byte) bool {
	return strings.Contains(string(content), "[workspace]")
}

// AddWorkspaceMember inserts member into the [workspace] members array,
// splicing text surgically rather than round-tripping through a TOML
// encoder so unrelated formatting and comments survive untouched.
func (manifestUpdater) AddWorkspaceMember(content []byte, member string) ([]byte, error) {
	text := string(content)
	start := strings.Index(text, "members")
	if start < 0 {
		return content, nil
	}
	open := strings.Index(text[start:], "[")
	if open < 0 {
		return content, nil
	}
	open += start
	close := strings.Index(text[open:], "]")
	if close < 0 {
		return content, nil
	}
	close += open

	entry := `"` + member + `"`
	if strings.Contains(text[open:close], entry) {
		return content, nil
	}

	inner := strings.TrimSpace(text[open+1 : close])
	var replacement string
	if inner == "" {
		replacement = "[" + entry + "]"
	} else {
		replacement = "[" + inner + ", " + entry + "]"
	}
	return []byte(text[:open] + replacement + text[close+1:]), nil
}

func (manifestUpdater) RemoveWorkspaceMember(content []byte, member string) ([]byte, error) {
	text := string(content)
	entry := `"` + member + `"`
	text = strings.ReplaceAll(text, entry+", ", "")
	text = strings.ReplaceAll(text, ", "+entry, "")
	text = strings.ReplaceAll(text, entry, "")
	return []byte(text), nil
}

// UpdateDependency rewrites a dependency's version string in-place,
// leaving inline tables (features, path, workspace=true) untouched.
func (manifestUpdater) UpdateDependency(content []byte, name, version string) ([]byte, error) {
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, name) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, name))
		if !strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "{") {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if strings.Contains(line, "{") {
			// Inline table: replace only the version = "..." member if present.
			if idx := strings.Index(line, `version`); idx >= 0 {
				before := line[:idx]
				afterKey := line[idx:]
				eq := strings.Index(afterKey, "=")
				if eq < 0 {
					continue
				}
				valStart := strings.Index(afterKey[eq:], `"`)
				if valStart < 0 {
					continue
				}
				valStart += eq + 1
				valEnd := strings.Index(afterKey[valStart:], `"`)
				if valEnd < 0 {
					continue
				}
				valEnd += valStart
				lines[i] = before + afterKey[:valStart] + version + afterKey[valEnd:]
			}
			continue
		}
		lines[i] = indent + name + ` = "` + version + `"`
	}
	return []byte(strings.Join(lines, "\n")), nil
}

