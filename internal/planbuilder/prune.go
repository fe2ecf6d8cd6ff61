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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bennypowers/millwright/internal/checksum"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/importgraph"
	"github.com/bennypowers/millwright/internal/plugin"
	"github.com/bennypowers/millwright/internal/planmodel"
)

// now is overridden in tests that need a fixed Metadata.CreatedAt.
var now = time.Now

// PruneSelector pins a symbol delete to a position, mirroring the
// original PruneSelector{line, character, symbol_name}.
type PruneSelector struct {
	Line       uint32
	Character  uint32
	SymbolName string
}

// PruneTarget names what's being deleted: a symbol (needs Selector), a
// file, or a directory.
type PruneTarget struct {
	Kind     string // "symbol" | "file" | "directory"
	Path     string
	Selector *PruneSelector
}

// PruneOptions mirrors the original's dry-run-by-default safety posture.
type PruneOptions struct {
	DryRun         bool
	CleanupImports *bool
	Force          bool
}

func (o PruneOptions) cleanupImports() bool {
	if o.CleanupImports == nil {
		return true
	}
	return *o.CleanupImports
}

// PrunePlanner builds delete plans for symbols, files, and directories.
// Ported from codebuddy's PrunePlanner
// (crates/mill-handlers/src/handlers/prune_ops.rs, read in full).
type PrunePlanner struct {
	Registry    *plugin.Registry
	Scanner     *importgraph.Scanner
	ProjectRoot string
}

// NewPrunePlanner builds a PrunePlanner over a plugin registry and import
// scanner rooted at projectRoot.
func NewPrunePlanner(registry *plugin.Registry, scanner *importgraph.Scanner, projectRoot string) *PrunePlanner {
	return &PrunePlanner{Registry: registry, Scanner: scanner, ProjectRoot: projectRoot}
}

// PlanSymbolDelete plans removal of one declaration via the extension's
// RefactoringProvider, which returns the engine's own Edit list directly
// (no LSP round trip involved, unlike rename/move).
func (p *PrunePlanner) PlanSymbolDelete(ctx context.Context, target PruneTarget) (planmodel.Plan, error) {
	if target.Selector == nil {
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest, "symbol delete requires a selector with line/character")
	}

	ext := filepath.Ext(target.Path)
	if ext == "" {
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest, "file has no extension: %s", target.Path)
	}

	pl, err := p.Registry.Get(ext)
	if err != nil {
		return planmodel.Plan{}, err
	}

	provider, ok := pl.RefactoringProvider()
	if !ok {
		return planmodel.Plan{}, corexerr.New(corexerr.NotSupported, "%s plugin does not support symbol deletion", pl.Name())
	}

	content, err := os.ReadFile(target.Path)
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "reading %s", target.Path)
	}

	editPlan, candidates, err := provider.PlanSymbolDelete(content, target.Selector.Line, target.Selector.Character, target.Path)
	if err != nil {
		e := corexerr.Wrap(corexerr.Internal, err, "symbol delete failed for %s", target.Path)
		e.Candidates = candidates
		return planmodel.Plan{}, e
	}

	digest, err := checksum.OfFile(target.Path)
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "checksumming %s", target.Path)
	}

	return planmodel.Plan{
		PlanType:      planmodel.KindDelete,
		AffectedFiles: []string{target.Path},
		FileChecksums: checksum.Map{target.Path: digest},
		Summary:       planmodel.Summary{AffectedFiles: 1},
		Edits:         editPlan.Edits,
		Metadata: planmodel.Metadata{
			PlanVersion:     1,
			Kind:            planmodel.KindDelete,
			Language:        pl.Name(),
			EstimatedImpact: planmodel.ImpactLow,
			CreatedAt:       now(),
		},
	}, nil
}

// PlanFileDelete plans a single file's removal: checksums it, walks the
// import graph for dependents, and warns if cleanup is needed.
func (p *PrunePlanner) PlanFileDelete(ctx context.Context, target PruneTarget, opts PruneOptions) (planmodel.Plan, error) {
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
	digest := checksum.OfBytes(content)

	projectFiles, err := importgraph.WalkProjectFiles(p.ProjectRoot)
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "walking project files")
	}
	affected, err := p.Scanner.FindAffectedFiles(ctx, target.Path, "", projectFiles)
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "finding files affected by deleting %s", target.Path)
	}

	var warnings []planmodel.Warning
	if len(affected) > 0 && opts.cleanupImports() {
		warnings = append(warnings, planmodel.Warning{
			Code:    planmodel.WarningImportCleanupRequired,
			Message: fmt.Sprintf("file deletion will clean up imports in %d dependent files", len(affected)),
		})
	}

	impact := planmodel.ImpactLow
	switch {
	case len(affected) > 5:
		impact = planmodel.ImpactHigh
	case len(affected) > 0:
		impact = planmodel.ImpactMedium
	}

	return planmodel.Plan{
		PlanType:      planmodel.KindDelete,
		AffectedFiles: append([]string{target.Path}, affected...),
		FileChecksums: checksum.Map{target.Path: digest},
		Summary:       planmodel.Summary{AffectedFiles: 1 + len(affected), DeletedFiles: 1},
		Deletions:     []planmodel.Deletion{{File: target.Path}},
		Warnings:      warnings,
		Metadata: planmodel.Metadata{
			PlanVersion:     1,
			Kind:            planmodel.KindDelete,
			Language:        extensionOf(target.Path),
			EstimatedImpact: impact,
			CreatedAt:       now(),
		},
	}, nil
}

// PlanDirectoryDelete plans removal of an entire directory, checksumming
// every contained file concurrently (bounded fan-out, mirroring the
// original's buffer_unordered(50)).
func (p *PrunePlanner) PlanDirectoryDelete(ctx context.Context, target PruneTarget, opts PruneOptions) (planmodel.Plan, error) {
	info, err := os.Stat(target.Path)
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.NotFound, err, "stat %s", target.Path)
	}
	if !info.IsDir() {
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest, "path is not a directory: %s", target.Path)
	}

	var files []string
	err = filepath.WalkDir(target.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() == ".git" && d.IsDir() {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "walking %s", target.Path)
	}

	const concurrency = 50
	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	checksums := make(checksum.Map, len(files))
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(f string) {
			defer wg.Done()
			defer func() { <-sem }()
			digest, err := checksum.OfFile(f)
			if err != nil {
				return
			}
			mu.Lock()
			checksums[f] = digest
			mu.Unlock()
		}(f)
	}
	wg.Wait()

	fileCount := len(checksums)

	var warnings []planmodel.Warning
	if opts.cleanupImports() {
		warnings = append(warnings, planmodel.Warning{
			Code:    planmodel.WarningImportCleanupRequired,
			Message: fmt.Sprintf("directory deletion will clean up imports for %d files", fileCount),
		})
	}
	if _, err := os.Stat(filepath.Join(target.Path, "Cargo.toml")); err == nil {
		warnings = append(warnings, planmodel.Warning{
			Code:    planmodel.WarningPackageDelete,
			Message: "deleting a Cargo package will remove it from workspace members",
		})
	}

	impact := planmodel.ImpactLow
	switch {
	case fileCount > 10:
		impact = planmodel.ImpactHigh
	case fileCount > 3:
		impact = planmodel.ImpactMedium
	}

	return planmodel.Plan{
		PlanType:      planmodel.KindDelete,
		AffectedFiles: files,
		FileChecksums: checksums,
		Summary:       planmodel.Summary{AffectedFiles: fileCount, DeletedFiles: fileCount},
		Deletions:     []planmodel.Deletion{{File: target.Path}},
		Warnings:      warnings,
		Metadata: planmodel.Metadata{
			PlanVersion:     1,
			Kind:            planmodel.KindDelete,
			Language:        "unknown",
			EstimatedImpact: impact,
			CreatedAt:       now(),
		},
	}, nil
}

func extensionOf(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return ext[1:]
}
