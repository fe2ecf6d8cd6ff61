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

// Package planbuilder is the Plan Builder (spec §3/§4.D): converts an LSP
// WorkspaceEdit into the engine's planmodel.Edit list, and assembles
// rename/move/delete/reorder plans. ConvertWorkspaceEdit is ported from
// codebuddy's plan_converter.rs (read in full): changes-map edits get a
// priority of total_edits-idx so array order survives as apply order,
// document_changes Operations map ResourceOp::Create/Rename/Delete onto
// EditCreate/EditMove/EditDeleteFile, and URIs are decoded back to native
// paths before anything touches a checksum.
package planbuilder

import (
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bennypowers/millwright/internal/corepath"
	"github.com/bennypowers/millwright/internal/planmodel"
)

// ConvertWorkspaceEdit flattens an LSP WorkspaceEdit into per-file edit
// lists keyed by native file path, in the shape planmodel.Plan.WorkspaceEdit
// expects.
func ConvertWorkspaceEdit(edit protocol.WorkspaceEdit) (map[string][]planmodel.Edit, error) {
	result := make(map[string][]planmodel.Edit)

	if edit.Changes != nil {
		for uri, lspEdits := range *edit.Changes {
			path, err := uriToPath(string(uri))
			if err != nil {
				return nil, err
			}
			total := len(lspEdits)
			for idx, lspEdit := range lspEdits {
				result[path] = append(result[path], planmodel.Edit{
					File: path,
					Kind: planmodel.EditReplace,
					Location: planmodel.Location{
						StartLine: lspEdit.Range.Start.Line, StartColumn: lspEdit.Range.Start.Character,
						EndLine: lspEdit.Range.End.Line, EndColumn: lspEdit.Range.End.Character,
					},
					NewText: lspEdit.NewText,
					// Preserve array order: first edit in the LSP response
					// gets the highest priority, so it applies first.
					Priority:    total - idx,
					Description: fmt.Sprintf("refactoring edit in %s", path),
				})
			}
		}
	}

	// DocumentChanges is an untyped slice in glsp: each element is one of
	// *TextDocumentEdit, *CreateFile, *RenameFile, or *DeleteFile, mirroring
	// the original's ResourceOp enum.
	for _, change := range edit.DocumentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentEdit:
			if err := appendTextDocumentEdit(result, c); err != nil {
				return nil, err
			}
		case *protocol.TextDocumentEdit:
			if err := appendTextDocumentEdit(result, *c); err != nil {
				return nil, err
			}
		case protocol.CreateFile:
			if err := appendCreateFile(result, c); err != nil {
				return nil, err
			}
		case *protocol.CreateFile:
			if err := appendCreateFile(result, *c); err != nil {
				return nil, err
			}
		case protocol.RenameFile:
			if err := appendRenameFile(result, c); err != nil {
				return nil, err
			}
		case *protocol.RenameFile:
			if err := appendRenameFile(result, *c); err != nil {
				return nil, err
			}
		case protocol.DeleteFile:
			if err := appendDeleteFile(result, c); err != nil {
				return nil, err
			}
		case *protocol.DeleteFile:
			if err := appendDeleteFile(result, *c); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unrecognized document change type %T", change)
		}
	}

	for path := range result {
		planmodel.SortEditsForFile(result[path])
	}
	return result, nil
}

func appendTextDocumentEdit(result map[string][]planmodel.Edit, tde protocol.TextDocumentEdit) error {
	path, err := uriToPath(string(tde.TextDocument.URI))
	if err != nil {
		return err
	}
	for _, raw := range tde.Edits {
		var textEdit protocol.TextEdit
		switch e := raw.(type) {
		case protocol.TextEdit:
			textEdit = e
		case *protocol.TextEdit:
			textEdit = *e
		case protocol.AnnotatedTextEdit:
			textEdit = e.TextEdit
		case *protocol.AnnotatedTextEdit:
			textEdit = e.TextEdit
		default:
			return fmt.Errorf("unrecognized text edit type %T in %s", raw, path)
		}
		result[path] = append(result[path], planmodel.Edit{
			File: path,
			Kind: planmodel.EditReplace,
			Location: planmodel.Location{
				StartLine: textEdit.Range.Start.Line, StartColumn: textEdit.Range.Start.Character,
				EndLine: textEdit.Range.End.Line, EndColumn: textEdit.Range.End.Character,
			},
			NewText:     textEdit.NewText,
			Description: fmt.Sprintf("refactoring edit in %s", path),
		})
	}
	return nil
}

func appendCreateFile(result map[string][]planmodel.Edit, cf protocol.CreateFile) error {
	path, err := uriToPath(string(cf.URI))
	if err != nil {
		return err
	}
	result[path] = append(result[path], planmodel.Edit{
		File: path, Kind: planmodel.EditCreate,
		Description: fmt.Sprintf("create file %s", path),
	})
	return nil
}

func appendRenameFile(result map[string][]planmodel.Edit, rf protocol.RenameFile) error {
	oldPath, err := uriToPath(string(rf.OldURI))
	if err != nil {
		return err
	}
	newPath, err := uriToPath(string(rf.NewURI))
	if err != nil {
		return err
	}
	result[oldPath] = append(result[oldPath], planmodel.Edit{
		File: oldPath, Kind: planmodel.EditMove, NewPath: newPath,
		Description: fmt.Sprintf("rename %s to %s", oldPath, newPath),
	})
	return nil
}

func appendDeleteFile(result map[string][]planmodel.Edit, df protocol.DeleteFile) error {
	path, err := uriToPath(string(df.URI))
	if err != nil {
		return err
	}
	result[path] = append(result[path], planmodel.Edit{
		File: path, Kind: planmodel.EditDeleteFile,
		Description: fmt.Sprintf("delete file %s", path),
	})
	return nil
}

// uriToPath decodes a file:// URI into a native path string, reusing
// corepath's LSP URI decoding (percent-encoded spaces included) rather
// than re-deriving the original converter's urlencoding::decode by hand.
func uriToPath(uri string) (string, error) {
	path, err := corepath.FromFileURI(uri)
	if err != nil {
		return "", fmt.Errorf("decoding URI %q: %w", uri, err)
	}
	return path, nil
}

// ExtractCreatedFiles lists every file an Edit list creates.
func ExtractCreatedFiles(edits []planmodel.Edit) []string {
	var out []string
	for _, e := range edits {
		if e.Kind == planmodel.EditCreate {
			out = append(out, e.File)
		}
	}
	return out
}

// ExtractDeletedFiles lists every file an Edit list deletes.
func ExtractDeletedFiles(edits []planmodel.Edit) []string {
	var out []string
	for _, e := range edits {
		if e.Kind == planmodel.EditDeleteFile {
			out = append(out, e.File)
		}
	}
	return out
}
