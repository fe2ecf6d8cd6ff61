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

// Package executor is the applying half of the Operation Queue & Executor
// (spec §4.E): turns a planmodel.Plan into a single opqueue.Transaction,
// commits it, and waits for the queue to drain before reporting per-file
// outcomes. Grounded on the teacher's basic_ops.rs write_file (read in
// full as part of the original_source pack): build a transaction, queue
// CreateDir/Write/Delete/Move operations, commit, then wait_until_idle
// before returning — the same commit-then-drain pairing, generalized
// from a single write to an arbitrary plan's edit set.
package executor

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/bennypowers/millwright/internal/checksum"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/opqueue"
	"github.com/bennypowers/millwright/internal/planmodel"
	"github.com/bennypowers/millwright/set"
)

// Options controls apply-time safety policy (spec §4.D "Policies").
type Options struct {
	// ValidateChecksums aborts the whole apply, with no partial state,
	// when any file in plan.FileChecksums has changed since planning.
	// Defaults true; set false only when the caller has already
	// reconciled drift (e.g. re-planned moments ago).
	ValidateChecksums bool
}

// DefaultOptions matches spec §4.D's validateChecksums=true default.
func DefaultOptions() Options { return Options{ValidateChecksums: true} }

// Result is the executor's outcome (spec §4.G's ExecutionResult),
// wrapped as {content: <ExecutionResult>} by the Dispatcher.
type Result struct {
	Applied      bool                `json:"applied"`
	FilesChanged []string            `json:"filesChanged"`
	FilesDeleted []string            `json:"filesDeleted"`
	FilesCreated []string            `json:"filesCreated"`
	Warnings     []planmodel.Warning `json:"warnings,omitempty"`
}

// Apply executes plan against queue: verifies every checksummed file is
// still at the digest recorded when the plan was built (unless
// opts.ValidateChecksums is false), builds one opqueue.Transaction from
// the plan's edits and deletions, commits it, and blocks until the
// queue has drained.
func Apply(ctx context.Context, queue *opqueue.Queue, plan planmodel.Plan, opts Options) (Result, error) {
	if opts.ValidateChecksums {
		if err := verifyChecksums(plan.FileChecksums); err != nil {
			return Result{}, err
		}
	}

	txn := opqueue.NewTransaction(queue)

	switch plan.PlanType {
	case planmodel.KindDelete:
		for path := range plan.FileChecksums {
			txn.AddOperation(opqueue.FileOperation{
				SubmittedBy:      "executor",
				Type:             opqueue.OpDelete,
				Path:             path,
				ExpectedChecksum: plan.FileChecksums[path],
			})
		}
	default:
		if err := addEditOperations(txn, plan); err != nil {
			return Result{}, err
		}
	}

	if err := txn.Commit(ctx); err != nil {
		return Result{}, err
	}
	if err := queue.WaitUntilIdle(ctx); err != nil {
		return Result{}, err
	}

	return summarize(plan), nil
}

func verifyChecksums(expected checksum.Map) error {
	var mismatched []string
	for path, want := range expected {
		got, err := checksum.OfFile(path)
		if err != nil {
			return corexerr.Wrap(corexerr.NotFound, err, "file %s referenced by the plan no longer exists", path)
		}
		if got != want {
			mismatched = append(mismatched, path)
		}
	}
	if len(mismatched) > 0 {
		sort.Strings(mismatched)
		return corexerr.New(corexerr.ChecksumMismatch,
			"plan is stale: %d file(s) changed since it was built: %s", len(mismatched), strings.Join(mismatched, ", "))
	}
	return nil
}

// addEditOperations groups plan.AllEdits() by file, applies each file's
// Create/Move/Delete-File edits as their own operations, and folds any
// remaining Replace/Insert/Delete-Range edits into a single rewritten
// file body queued as one Write.
func addEditOperations(txn *opqueue.Transaction, plan planmodel.Plan) error {
	byFile := make(map[string][]planmodel.Edit)
	for _, e := range plan.AllEdits() {
		byFile[e.File] = append(byFile[e.File], e)
	}

	for file, edits := range byFile {
		planmodel.SortEditsForFile(edits)

		var textEdits []planmodel.Edit
		for _, e := range edits {
			switch e.Kind {
			case planmodel.EditCreate:
				txn.AddOperation(opqueue.FileOperation{
					SubmittedBy: "executor", Type: opqueue.OpCreateFile,
					Path: file, Content: []byte(e.NewText),
				})
			case planmodel.EditDeleteFile:
				txn.AddOperation(opqueue.FileOperation{
					SubmittedBy: "executor", Type: opqueue.OpDelete, Path: file,
				})
			case planmodel.EditMove:
				txn.AddOperation(opqueue.FileOperation{
					SubmittedBy: "executor", Type: opqueue.OpMove,
					Path: file, NewPath: e.NewPath,
				})
			default:
				textEdits = append(textEdits, e)
			}
		}

		if len(textEdits) == 0 {
			continue
		}
		content, checksumErr := os.ReadFile(file)
		if checksumErr != nil {
			return corexerr.Wrap(corexerr.NotFound, checksumErr, "reading %s to apply edits", file)
		}
		rewritten, err := applyTextEdits(string(content), textEdits)
		if err != nil {
			return err
		}
		txn.AddOperation(opqueue.FileOperation{
			SubmittedBy: "executor", Type: opqueue.OpWrite,
			Path: file, Content: []byte(rewritten),
		})
	}
	return nil
}

// applyTextEdits rewrites a line buffer with a file's Replace/Insert/
// Delete-Range edits, per spec §4.E's per-file apply rule: edits must
// already be sorted descending by (start_line, start_column) so earlier
// offsets are never invalidated by a later-applied edit.
func applyTextEdits(content string, edits []planmodel.Edit) (string, error) {
	lines := strings.Split(content, "\n")
	for _, e := range edits {
		if int(e.Location.EndLine) >= len(lines) || int(e.Location.StartLine) >= len(lines) {
			return "", corexerr.New(corexerr.Conflict,
				"edit range no longer valid: file has %d lines, edit touches line %d", len(lines), e.Location.EndLine)
		}
		if e.Location.StartLine == e.Location.EndLine {
			line := lines[e.Location.StartLine]
			if int(e.Location.EndColumn) > len(line) || int(e.Location.StartColumn) > int(e.Location.EndColumn) {
				return "", corexerr.New(corexerr.Conflict, "edit column range no longer valid on line %d", e.Location.StartLine)
			}
			lines[e.Location.StartLine] = line[:e.Location.StartColumn] + e.NewText + line[e.Location.EndColumn:]
			continue
		}

		first := lines[e.Location.StartLine]
		last := lines[e.Location.EndLine]
		merged := first[:e.Location.StartColumn] + e.NewText + last[e.Location.EndColumn:]
		lines = append(lines[:e.Location.StartLine], append([]string{merged}, lines[e.Location.EndLine+1:]...)...)
	}
	return strings.Join(lines, "\n"), nil
}

func summarize(plan planmodel.Plan) Result {
	r := Result{Applied: true, Warnings: plan.Warnings}
	switch plan.PlanType {
	case planmodel.KindDelete:
		for path := range plan.FileChecksums {
			r.FilesDeleted = append(r.FilesDeleted, path)
		}
		sort.Strings(r.FilesDeleted)
	default:
		for _, e := range plan.AllEdits() {
			switch e.Kind {
			case planmodel.EditCreate:
				r.FilesCreated = append(r.FilesCreated, e.File)
			case planmodel.EditDeleteFile:
				r.FilesDeleted = append(r.FilesDeleted, e.File)
			default:
				r.FilesChanged = append(r.FilesChanged, e.File)
			}
		}
		r.FilesChanged = dedupeSorted(r.FilesChanged)
		r.FilesCreated = dedupeSorted(r.FilesCreated)
		r.FilesDeleted = dedupeSorted(r.FilesDeleted)
	}
	return r
}

func dedupeSorted(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := set.NewSet(paths...)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
