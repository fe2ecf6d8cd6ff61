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

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bennypowers/millwright/internal/corepath"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/planmodel"
)

// RenameTarget names the symbol to rename: its declaring/referencing
// file and position, plus the replacement name (the `rename_all` tool,
// spec §6).
type RenameTarget struct {
	FilePath string
	Position protocol.Position
	NewName  string
}

// PlanRename asks the target file's LSP server for a workspace-wide
// rename via the standard textDocument/rename request — the same
// request organizeImports/code-action requests go through in
// ReorderHandler, so this method is hung off the same handler rather
// than a new type.
func (h *ReorderHandler) PlanRename(ctx context.Context, target RenameTarget) (planmodel.Plan, error) {
	if target.NewName == "" {
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest, "rename requires a non-empty newName")
	}

	ext, client, absPath, err := h.clientFor(ctx, target.FilePath)
	if err != nil {
		return planmodel.Plan{}, err
	}

	params := protocol.RenameParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(corepath.ToFileURI(absPath))},
			Position:     target.Position,
		},
		NewName: target.NewName,
	}

	var edit protocol.WorkspaceEdit
	if err := client.SendRequest(ctx, "textDocument/rename", params, &edit); err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.LspError, err, "LSP rename failed for %s", absPath)
	}

	return h.buildPlanOfKind(absPath, ext, planmodel.KindRename, edit)
}
