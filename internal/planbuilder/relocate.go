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

package planbuilder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bennypowers/millwright/internal/checksum"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/importgraph"
	"github.com/bennypowers/millwright/internal/planmodel"
	"github.com/bennypowers/millwright/internal/plugin"
)

// RelocateTarget is the `relocate` tool's arguments (spec §6): a file or
// directory path, its destination, and whether dependent files' imports
// should be rewritten to follow.
type RelocateTarget struct {
	Kind          string // "file" | "directory"
	Path          string
	Destination   string
	UpdateImports bool
}

// MovePlanner builds move plans: the source file itself becomes a single
// Move edit, and every project file whose imports resolve to the old
// path (found via the Import Graph Scanner) gets a whole-file rewrite
// edit through the plugin's ImportMoveSupport, mirroring the original's
// dependency_analysis.rs "find affected files, rewrite each" shape (read
// in full at _examples/original_source/crates/cb-services/src/services/
// file_service/dependency_analysis.rs).
type MovePlanner struct {
	Registry    *plugin.Registry
	Scanner     *importgraph.Scanner
	ProjectRoot string
}

// NewMovePlanner builds a MovePlanner over a plugin registry, import
// scanner, and project root.
func NewMovePlanner(registry *plugin.Registry, scanner *importgraph.Scanner, projectRoot string) *MovePlanner {
	return &MovePlanner{Registry: registry, Scanner: scanner, ProjectRoot: projectRoot}
}

// PlanMove builds a movePlan for target. Only file moves rewrite
// dependents today; directory moves relocate every contained file
// without updating importers, reported via a BEST_EFFORT_SCAN warning.
func (p *MovePlanner) PlanMove(ctx context.Context, target RelocateTarget) (planmodel.Plan, error) {
	if target.Destination == "" {
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest, "relocate requires a destination")
	}
	if _, err := os.Stat(target.Destination); err == nil {
		return planmodel.Plan{}, corexerr.New(corexerr.Conflict, "destination already exists: %s", target.Destination)
	}

	switch target.Kind {
	case "file":
		return p.planFileMove(ctx, target)
	case "directory":
		return p.planDirectoryMove(target)
	default:
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest,
			"unsupported relocate kind %q, must be one of: file, directory", target.Kind)
	}
}

// PlanRenameFile renames a file in place (same directory, new basename)
// by delegating to PlanMove with a destination computed from newName, so
// an in-place rename gets the same dependent-import rewrite treatment as
// relocating the file (rename_all's "file" kind, spec §6).
func (p *MovePlanner) PlanRenameFile(ctx context.Context, path, newName string, updateImports bool) (planmodel.Plan, error) {
	dest := filepath.Join(filepath.Dir(path), newName)
	return p.PlanMove(ctx, RelocateTarget{Kind: "file", Path: path, Destination: dest, UpdateImports: updateImports})
}

// PlanRenameDirectory renames a directory in place (same parent, new
// basename), the "directory" counterpart to PlanRenameFile.
func (p *MovePlanner) PlanRenameDirectory(ctx context.Context, path, newName string) (planmodel.Plan, error) {
	dest := filepath.Join(filepath.Dir(path), newName)
	return p.PlanMove(ctx, RelocateTarget{Kind: "directory", Path: path, Destination: dest})
}

func (p *MovePlanner) planFileMove(ctx context.Context, target RelocateTarget) (planmodel.Plan, error) {
	info, err := os.Stat(target.Path)
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.NotFound, err, "stat %s", target.Path)
	}
	if info.IsDir() {
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest, "%s is a directory, not a file", target.Path)
	}

	content, err := os.ReadFile(target.Path)
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "reading %s", target.Path)
	}

	edits := []planmodel.Edit{
		{File: target.Path, Kind: planmodel.EditMove, NewPath: target.Destination, Priority: 100},
	}
	checksums := checksum.Map{target.Path: checksum.OfBytes(content)}
	affected := []string{target.Path}
	var warnings []planmodel.Warning

	if target.UpdateImports {
		projectFiles, err := importgraph.WalkProjectFiles(p.ProjectRoot)
		if err != nil {
			return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "walking project files")
		}
		dependents, err := p.Scanner.FindAffectedFiles(ctx, target.Path, target.Destination, projectFiles)
		if err != nil {
			return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "finding files affected by moving %s", target.Path)
		}
		for _, dep := range dependents {
			if dep == target.Path {
				continue
			}
			depContent, err := os.ReadFile(dep)
			if err != nil {
				return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "reading %s", dep)
			}
			rewritten, changed, err := p.rewriteImports(dep, depContent, target.Path, target.Destination, p.Scanner.ExtensionProbe)
			if err != nil {
				warnings = append(warnings, planmodel.Warning{
					Code:    planmodel.WarningBestEffortScan,
					Message: err.Error(),
				})
				continue
			}
			if !changed {
				continue
			}
			edits = append(edits, wholeFileReplace(dep, string(depContent), rewritten))
			checksums[dep] = checksum.OfBytes(depContent)
			affected = append(affected, dep)
		}
	}

	return planmodel.Plan{
		PlanType:      planmodel.KindMove,
		AffectedFiles: affected,
		FileChecksums: checksums,
		Summary:       planmodel.Summary{AffectedFiles: len(affected)},
		Edits:         edits,
		Warnings:      warnings,
		Metadata: planmodel.Metadata{
			PlanVersion:     1,
			Kind:            planmodel.KindMove,
			Language:        extensionOf(target.Path),
			EstimatedImpact: impactForCount(len(affected)),
			CreatedAt:       now(),
		},
	}, nil
}

func (p *MovePlanner) planDirectoryMove(target RelocateTarget) (planmodel.Plan, error) {
	info, err := os.Stat(target.Path)
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.NotFound, err, "stat %s", target.Path)
	}
	if !info.IsDir() {
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest, "path is not a directory: %s", target.Path)
	}

	var edits []planmodel.Edit
	checksums := make(checksum.Map)
	var affected []string

	err = filepath.WalkDir(target.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(target.Path, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(target.Destination, rel)
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		edits = append(edits, planmodel.Edit{File: path, Kind: planmodel.EditMove, NewPath: dest, Priority: 100})
		checksums[path] = checksum.OfBytes(content)
		affected = append(affected, path)
		return nil
	})
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "walking %s", target.Path)
	}

	warnings := []planmodel.Warning{{
		Code:    planmodel.WarningBestEffortScan,
		Message: "directory move does not rewrite importers; re-run relocate on affected files if needed",
	}}

	return planmodel.Plan{
		PlanType:      planmodel.KindMove,
		AffectedFiles: affected,
		FileChecksums: checksums,
		Summary:       planmodel.Summary{AffectedFiles: len(affected)},
		Edits:         edits,
		Warnings:      warnings,
		Metadata: planmodel.Metadata{
			PlanVersion:     1,
			Kind:            planmodel.KindMove,
			Language:        "unknown",
			EstimatedImpact: impactForCount(len(affected)),
			CreatedAt:       now(),
		},
	}, nil
}

// rewriteImports dispatches to dependentPath's plugin's ImportMoveSupport.
// oldPath/newPath are filesystem paths; relative-specifier plugins (the
// TypeScript/JS mover) expect module-specifier-shaped arguments instead,
// so those are computed relative to dependentPath's own directory before
// the call, per that mover's documented contract. Plugins with a
// different specifier grammar (Go import paths, Markdown's literal link
// text) are handed the filesystem paths as-is, which only rewrites
// correctly when that grammar happens to use filesystem-shaped strings.
func (p *MovePlanner) rewriteImports(dependentPath string, content []byte, oldPath, newPath string, extensionProbe []string) (string, bool, error) {
	ext := filepath.Ext(dependentPath)
	if ext == "" {
		return "", false, corexerr.New(corexerr.NotSupported, "file has no extension: %s", dependentPath)
	}
	pl, err := p.Registry.Get(ext)
	if err != nil {
		return "", false, err
	}
	support, ok := pl.ImportMoveSupport()
	if !ok {
		return "", false, corexerr.New(corexerr.NotSupported, "%s plugin does not support import rewriting on move", pl.Name())
	}

	from, to := oldPath, newPath
	if isRelativeSpecifierPlugin(ext) {
		from = relativeSpecifier(dependentPath, oldPath, extensionProbe)
		to = relativeSpecifier(dependentPath, newPath, extensionProbe)
	}

	newContent, changeCount, err := support.RewriteImportsForMove(content, from, to)
	if err != nil {
		return "", false, err
	}
	if changeCount == 0 || bytes.Equal(content, newContent) {
		return "", false, nil
	}
	return string(newContent), true, nil
}

// isRelativeSpecifierPlugin names the extensions whose ImportMoveSupport
// expects a "./foo" or "../foo" style specifier (the JS/TS family),
// matching the ExtensionProbe convention importgraph.Scanner already
// resolves against.
func isRelativeSpecifierPlugin(ext string) bool {
	switch ext {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return true
	default:
		return false
	}
}

// relativeSpecifier renders target as a module specifier relative to
// fromFile's directory, stripping a known extension the way a bare
// import specifier normally omits one (import("./x") resolving to x.ts).
func relativeSpecifier(fromFile, target string, extensionProbe []string) string {
	rel, err := filepath.Rel(filepath.Dir(fromFile), target)
	if err != nil {
		return target
	}
	rel = filepath.ToSlash(rel)
	for _, ext := range extensionProbe {
		if strings.HasSuffix(rel, ext) {
			rel = strings.TrimSuffix(rel, ext)
			break
		}
	}
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

// wholeFileReplace builds a single Replace edit spanning an entire file,
// used when a plugin hands back fully rewritten content rather than a
// targeted range (import-path rewrites touch every specifier, not one
// contiguous span). The range must address the file's content as it
// stands when the executor applies the edit, so it's computed from
// oldContent (what's on disk now), not newContent.
func wholeFileReplace(file, oldContent, newContent string) planmodel.Edit {
	oldLines := splitLines(oldContent)
	lastLine := oldLines[len(oldLines)-1]
	return planmodel.Edit{
		File: file,
		Kind: planmodel.EditReplace,
		Location: planmodel.Location{
			StartLine: 0, StartColumn: 0,
			EndLine: uint32(len(oldLines) - 1), EndColumn: uint32(len(lastLine)),
		},
		NewText:  newContent,
		Priority: 50,
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func impactForCount(n int) planmodel.ImpactLevel {
	switch {
	case n > 5:
		return planmodel.ImpactHigh
	case n > 1:
		return planmodel.ImpactMedium
	default:
		return planmodel.ImpactLow
	}
}
