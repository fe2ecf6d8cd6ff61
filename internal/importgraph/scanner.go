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

// Package importgraph implements the Import Graph & Reference Scanner
// (spec §4.B): find_affected_files dispatches to a plugin's
// language-aware ImportAdvancedSupport when present (the Rust crate/module
// path analysis is the motivating case) and otherwise falls back to
// generic textual specifier resolution, probing a configured extension
// list and index-file fallback, the same way
// _examples/original_source's mill-ast/src/parser.rs resolves "./x",
// "../x", and alias specifiers against the importing file's directory.
package importgraph

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/bennypowers/millwright/internal/plugin"
	"github.com/bennypowers/millwright/internal/platform"
)

// Scanner finds affected files and rewrites imports, delegating to
// language plugins where available.
type Scanner struct {
	Registry       *plugin.Registry
	ProjectRoot    string
	ExtensionProbe []string // e.g. [".ts", ".tsx", ".js", ".jsx"]
	IndexNames     []string // e.g. ["index.ts", "index.js"]

	// FS is the filesystem genericAffectedFiles/resolveSpecifier read
	// through; overridable in tests without touching a real disk, the
	// same seam platform.FileSystem was built to provide.
	FS platform.FileSystem
}

// NewScanner builds a Scanner with reasonable JS/TS-oriented defaults for
// the specifier probe; callers may override ExtensionProbe/IndexNames per
// project.
func NewScanner(registry *plugin.Registry, projectRoot string) *Scanner {
	return &Scanner{
		Registry:       registry,
		ProjectRoot:    projectRoot,
		ExtensionProbe: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		IndexNames:     []string{"index.ts", "index.tsx", "index.js", "index.jsx"},
		FS:             platform.NewOSFileSystem(),
	}
}

// ParseImports is the capability-gated textual/AST import extraction from
// spec §4.B; absence of an ImportParser on the resolved plugin is
// reported, not panicked.
func (s *Scanner) ParseImports(extension string, content []byte) ([]plugin.ImportInfo, bool, error) {
	p, err := s.Registry.Get(extension)
	if err != nil {
		return nil, false, err
	}
	parser, ok := p.ImportParser()
	if !ok {
		return nil, false, nil
	}
	imports, err := parser.ParseImports(content)
	return imports, true, err
}

// FindAffectedFiles implements spec §4.B's dispatch: language-aware
// analysis when the resolved plugin supports ImportAdvancedSupport (Rust
// crate-name + module-path analysis including crate::/super::/self::),
// otherwise the generic specifier-resolution fallback below. Parse
// errors are reported as warnings by the caller, never fatal here — the
// affected set returned is best-effort and may be a superset.
func (s *Scanner) FindAffectedFiles(ctx context.Context, oldPath, newPath string, projectFiles []string) ([]string, error) {
	ext := filepath.Ext(oldPath)
	if p, err := s.Registry.Get(ext); err == nil {
		if adv, ok := p.ImportAdvancedSupport(); ok {
			return adv.FindAffectedFiles(ctx, s.ProjectRoot, oldPath, newPath, projectFiles)
		}
	}
	return s.genericAffectedFiles(oldPath, projectFiles)
}

// genericAffectedFiles resolves textual module specifiers ("./x", "../x",
// bare alias paths) against each candidate importer's directory, probing
// ExtensionProbe and IndexNames, and reports importers whose resolved
// target matches oldPath.
func (s *Scanner) genericAffectedFiles(oldPath string, projectFiles []string) ([]string, error) {
	var affected []string
	for _, file := range projectFiles {
		if file == oldPath {
			continue
		}
		ext := filepath.Ext(file)
		p, err := s.Registry.Get(ext)
		if err != nil {
			continue // no plugin for this extension: not a candidate importer
		}
		parser, ok := p.ImportParser()
		if !ok {
			continue
		}
		content, err := s.FS.ReadFile(file)
		if err != nil {
			continue // best-effort: unreadable files are skipped, not fatal
		}
		imports, err := parser.ParseImports(content)
		if err != nil {
			continue
		}
		for _, imp := range imports {
			if !isRelativeSpecifier(imp.ModulePath) {
				continue
			}
			resolved := s.resolveSpecifier(filepath.Dir(file), imp.ModulePath)
			if resolved != "" && samePath(resolved, oldPath) {
				affected = append(affected, file)
				break
			}
		}
	}
	return affected, nil
}

func isRelativeSpecifier(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// resolveSpecifier resolves a relative specifier against fromDir,
// probing ExtensionProbe suffixes and then an index-file fallback,
// returning "" if nothing on disk matches.
func (s *Scanner) resolveSpecifier(fromDir, spec string) string {
	base := filepath.Clean(filepath.Join(fromDir, spec))

	if hasKnownExtension(base, s.ExtensionProbe) {
		if s.fileExists(base) {
			return base
		}
	}
	for _, ext := range s.ExtensionProbe {
		candidate := base + ext
		if s.fileExists(candidate) {
			return candidate
		}
	}
	for _, idx := range s.IndexNames {
		candidate := filepath.Join(base, idx)
		if s.fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func hasKnownExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func (s *Scanner) fileExists(path string) bool {
	info, err := s.FS.Stat(path)
	return err == nil && !info.IsDir()
}

func samePath(a, b string) bool {
	ca, err1 := filepath.Abs(a)
	cb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return filepath.Clean(ca) == filepath.Clean(cb)
}

// WalkProjectFiles lists every file under root, excluding paths matched
// by a .gitignore at root (if present) and always excluding .git itself —
// used to build the projectFiles slice FindAffectedFiles scans over.
func WalkProjectFiles(root string) ([]string, error) {
	var ignore *gitignore.GitIgnore
	if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		ignore = gitignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if strings.HasPrefix(rel, ".git"+string(filepath.Separator)) || rel == ".git" {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
