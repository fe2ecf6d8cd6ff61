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

// Package planmodel holds the data model from spec §3: Edit, Plan (the
// renamePlan|movePlan|deletePlan|reorderPlan|editPlan discriminated
// union), Warning, Metadata, and the Workflow step chain.
package planmodel

import (
	"sort"
	"time"

	"github.com/bennypowers/millwright/internal/checksum"
)

// EditKind discriminates an Edit's shape.
type EditKind string

const (
	EditReplace     EditKind = "Replace"
	EditInsert      EditKind = "Insert"
	EditDeleteRange EditKind = "Delete-Range"
	EditCreate      EditKind = "Create"
	EditDeleteFile  EditKind = "Delete-File"
	EditMove        EditKind = "Move"
)

// Location is a half-open [Start, End) range in 0-based LSP line/character
// coordinates.
type Location struct {
	StartLine   uint32 `json:"startLine"`
	StartColumn uint32 `json:"startColumn"`
	EndLine     uint32 `json:"endLine"`
	EndColumn   uint32 `json:"endColumn"`
}

// Edit is the tuple from spec §3: (file, kind, location, new_text,
// priority, description). Within one file, edits apply in descending
// priority order (highest first); ties break by later-occurring range
// first, so offsets earlier in the file are never invalidated by a
// later-applied edit.
type Edit struct {
	File        string   `json:"file"`
	Kind        EditKind `json:"kind"`
	Location    Location `json:"location,omitempty"`
	NewText     string   `json:"newText,omitempty"`
	Priority    int      `json:"priority"`
	Description string   `json:"description,omitempty"`
	// NewPath is set for EditMove; the move's destination logical path.
	NewPath string `json:"newPath,omitempty"`
}

// SortEditsForFile orders a single file's edits per the priority/tie-break
// rule: descending priority, ties broken by later-occurring range first.
func SortEditsForFile(edits []Edit) {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Priority != edits[j].Priority {
			return edits[i].Priority > edits[j].Priority
		}
		if edits[i].Location.StartLine != edits[j].Location.StartLine {
			return edits[i].Location.StartLine > edits[j].Location.StartLine
		}
		return edits[i].Location.StartColumn > edits[j].Location.StartColumn
	})
}

// WarningCode is a stable, programmatically-handleable warning code.
type WarningCode string

const (
	WarningImportCleanupRequired WarningCode = "IMPORT_CLEANUP_REQUIRED"
	WarningPackageDelete         WarningCode = "PACKAGE_DELETE"
	WarningNotSupported          WarningCode = "NOT_SUPPORTED"
	WarningLspServerError        WarningCode = "LSP_SERVER_ERROR"
	WarningBestEffortScan        WarningCode = "BEST_EFFORT_SCAN"
)

// Warning is a non-fatal annotation on a Plan or ExecutionResult.
type Warning struct {
	Code       WarningCode `json:"code"`
	Message    string      `json:"message"`
	Candidates []string    `json:"candidates,omitempty"`
}

// Summary is the counts every Plan reports.
type Summary struct {
	AffectedFiles int `json:"affectedFiles"`
	CreatedFiles  int `json:"createdFiles"`
	DeletedFiles  int `json:"deletedFiles"`
}

// ImpactLevel is metadata.estimatedImpact.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// PlanKind is the metadata.kind / envelope planType discriminant.
type PlanKind string

const (
	KindRename  PlanKind = "renamePlan"
	KindMove    PlanKind = "movePlan"
	KindDelete  PlanKind = "deletePlan"
	KindReorder PlanKind = "reorderPlan"
	KindEdit    PlanKind = "editPlan"
)

// Metadata carries plan provenance.
type Metadata struct {
	PlanVersion     int         `json:"planVersion"`
	Kind            PlanKind    `json:"kind"`
	Language        string      `json:"language,omitempty"`
	EstimatedImpact ImpactLevel `json:"estimatedImpact"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// Deletion records one file or directory slated for removal; the
// checksums sampled at plan time live in Plan.FileChecksums.
type Deletion struct {
	File string `json:"file"`
}

// Plan is the discriminated union from spec §3. Exactly one of
// WorkspaceEdit (edits keyed by file), Deletions, or a flat Edits list is
// populated, selected by Metadata.Kind / PlanType.
type Plan struct {
	PlanType      PlanKind         `json:"planType"`
	AffectedFiles []string         `json:"affectedFiles"`
	FileChecksums checksum.Map     `json:"fileChecksums"`
	Summary       Summary          `json:"summary"`
	Warnings      []Warning        `json:"warnings,omitempty"`
	Metadata      Metadata         `json:"metadata"`
	WorkspaceEdit map[string][]Edit `json:"workspaceEdit,omitempty"`
	Deletions     []Deletion       `json:"deletions,omitempty"`
	Edits         []Edit           `json:"edits,omitempty"`
}

// AllEdits flattens WorkspaceEdit and Edits into one slice, preserving
// per-file order but making no promise about cross-file order (spec §5:
// "no guaranteed order" across files in one plan).
func (p *Plan) AllEdits() []Edit {
	if p.WorkspaceEdit != nil {
		var all []Edit
		for _, fileEdits := range p.WorkspaceEdit {
			all = append(all, fileEdits...)
		}
		return all
	}
	return p.Edits
}

// WorkflowStep is one plan-producing step in an ordered Workflow; its
// Parameters may reference a prior step's output via a "$steps.N.field"
// placeholder path, resolved by the caller before invoking the step's
// handler.
type WorkflowStep struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// Workflow is an ordered list of plan-producing steps.
type Workflow struct {
	Steps []WorkflowStep `json:"steps"`
}
