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

// Package plugin defines the Language Plugin capability set from spec §3
// and the registry from spec §4.A: get_plugin(extension) is O(1), all()
// returns every registered plugin, and a per-extension priority table
// with a configurable errorOnAmbiguity flag resolves ties.
package plugin

import (
	"context"

	"github.com/bennypowers/millwright/internal/planmodel"
)

// ImportKind classifies one parsed import per spec §3's Import Graph.
type ImportKind string

const (
	ImportEsModule ImportKind = "EsModule"
	ImportCommonJs ImportKind = "CommonJs"
	ImportDynamic  ImportKind = "Dynamic"
	ImportTypeOnly ImportKind = "TypeOnly"
	ImportNative   ImportKind = "Native"
)

// ImportInfo records one parsed import.
type ImportInfo struct {
	ModulePath       string
	Kind             ImportKind
	NamedBindings    []string
	DefaultBinding   string
	NamespaceBinding string
	Range            planmodel.Location
	TypeOnly         bool
}

// FileImports is the per-file half of the Import Graph.
type FileImports struct {
	Path      string
	Imports   []ImportInfo
	Importers []string
}

// DependencyUpdate describes a manifest-driven rewrite of an import
// string in source content (e.g. a dependency's name changed during a
// workspace consolidation).
type DependencyUpdate struct {
	OldModulePath string
	NewModulePath string
}

// --- Capability interfaces. Any may be absent on a given plugin; callers
// must handle absence as a first-class NotSupported outcome, never a panic. ---

// ImportParser extracts import statements from file content. Purely
// textual/AST; it performs no filesystem access.
type ImportParser interface {
	ParseImports(content []byte) ([]ImportInfo, error)
}

// ImportRenameSupport updates in-file references when a file or module is
// renamed by name only (its directory does not change).
type ImportRenameSupport interface {
	RewriteImportsForRename(content []byte, oldName, newName string) (newContent []byte, changeCount int, err error)
}

// ImportMoveSupport updates relative import paths when a file moves,
// preserving anchors, link syntax, and surrounding whitespace.
type ImportMoveSupport interface {
	RewriteImportsForMove(content []byte, oldPath, newPath string) (newContent []byte, changeCount int, err error)
}

// ImportMutationSupport applies a single DependencyUpdate to content,
// used when a manifest rewrite requires touching import strings.
type ImportMutationSupport interface {
	UpdateImportReference(content []byte, update DependencyUpdate) ([]byte, error)
}

// ImportAdvancedSupport is path-based, language-aware affected-file
// detection beyond generic specifier resolution — the Rust crate/module
// path analysis is the motivating case.
type ImportAdvancedSupport interface {
	FindAffectedFiles(ctx context.Context, projectRoot, oldPath, newPath string, projectFiles []string) ([]string, error)
}

// ModuleReferenceScanner answers whether a given file references a given
// module/crate path textually, without full parsing.
type ModuleReferenceScanner interface {
	ReferencesModule(content []byte, modulePath string) bool
}

// ImportAnalyzer builds the full Import Graph for a set of files.
type ImportAnalyzer interface {
	AnalyzeImports(files map[string][]byte) (map[string]FileImports, error)
}

// EditPlan is the plugin-local result of a symbol-level refactor,
// converted by the Plan Builder into the engine-wide planmodel.Edit list.
type EditPlan struct {
	Edits []planmodel.Edit
}

// RefactoringProvider performs plugin-local, non-LSP refactors: today,
// symbol deletion (remove a declaration and any now-dangling local
// references the LSP wasn't asked about).
type RefactoringProvider interface {
	PlanSymbolDelete(content []byte, line, character uint32, filePath string) (EditPlan, []string, error)
}

// ManifestUpdater mutates a manifest document's bytes, preserving
// unrelated formatting, comments, and ordering (spec §4.F).
type ManifestUpdater interface {
	IsWorkspaceManifest(content []byte) bool
	AddWorkspaceMember(content []byte, member string) ([]byte, error)
	RemoveWorkspaceMember(content []byte, member string) ([]byte, error)
	UpdateDependency(content []byte, name, version string) ([]byte, error)
}

// ExtractOptions configures ManifestUpdater-adjacent dependency
// extraction.
type ExtractOptions struct {
	PreserveVersions bool
	PreserveFeatures bool
	Names            []string
}

// ExtractResult is what extract_dependencies reports back.
type ExtractResult struct {
	TargetContent []byte
	Added         []string
	Warnings      []planmodel.Warning
}

// WorkspaceSupport extracts dependencies between two manifest documents
// of the plugin's language.
type WorkspaceSupport interface {
	ExtractDependencies(sourceContent, targetContent []byte, opts ExtractOptions) (ExtractResult, error)
	WorkspaceMembers(rootDir string, content []byte) ([]string, error)
}

// ProjectFactory creates a new package/module of the plugin's language at
// a given path (used by the "create a package" intent from spec §1).
type ProjectFactory interface {
	ScaffoldPackage(dir, name string) ([]planmodel.Edit, error)
}

// Plugin is a handle exposing the fixed capability set from spec §3. Any
// accessor may return (nil, false); absence is not an error by itself.
type Plugin interface {
	Name() string
	Extensions() []string

	ImportParser() (ImportParser, bool)
	ImportRenameSupport() (ImportRenameSupport, bool)
	ImportMoveSupport() (ImportMoveSupport, bool)
	ImportMutationSupport() (ImportMutationSupport, bool)
	ImportAdvancedSupport() (ImportAdvancedSupport, bool)
	ModuleReferenceScanner() (ModuleReferenceScanner, bool)
	ImportAnalyzer() (ImportAnalyzer, bool)
	RefactoringProvider() (RefactoringProvider, bool)
	ManifestUpdater() (ManifestUpdater, bool)
	WorkspaceSupport() (WorkspaceSupport, bool)
	ProjectFactory() (ProjectFactory, bool)
}

// BasePlugin is embeddable by concrete plugins; every accessor defaults
// to "absent" so a plugin only needs to override what it implements.
type BasePlugin struct {
	PluginName       string
	PluginExtensions []string
}

func (b *BasePlugin) Name() string           { return b.PluginName }
func (b *BasePlugin) Extensions() []string   { return b.PluginExtensions }
func (b *BasePlugin) ImportParser() (ImportParser, bool)                     { return nil, false }
func (b *BasePlugin) ImportRenameSupport() (ImportRenameSupport, bool)       { return nil, false }
func (b *BasePlugin) ImportMoveSupport() (ImportMoveSupport, bool)           { return nil, false }
func (b *BasePlugin) ImportMutationSupport() (ImportMutationSupport, bool)   { return nil, false }
func (b *BasePlugin) ImportAdvancedSupport() (ImportAdvancedSupport, bool)   { return nil, false }
func (b *BasePlugin) ModuleReferenceScanner() (ModuleReferenceScanner, bool) { return nil, false }
func (b *BasePlugin) ImportAnalyzer() (ImportAnalyzer, bool)                 { return nil, false }
func (b *BasePlugin) RefactoringProvider() (RefactoringProvider, bool)       { return nil, false }
func (b *BasePlugin) ManifestUpdater() (ManifestUpdater, bool)               { return nil, false }
func (b *BasePlugin) WorkspaceSupport() (WorkspaceSupport, bool)             { return nil, false }
func (b *BasePlugin) ProjectFactory() (ProjectFactory, bool)                 { return nil, false }
