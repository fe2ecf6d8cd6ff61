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
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bennypowers/millwright/internal/corepath"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/planmodel"
)

// RefactorTarget names an extract/inline request's anchor range and the
// symbol name the extracted declaration should take (ignored for
// inline). Name isn't sent to the LSP server directly — refactor.extract
// code actions name the new declaration themselves (servers vary in
// their default) — a caller wanting a specific name chains a follow-up
// rename_all step against the declaration the extract plan introduces,
// the same two-step shape spec §6's Workflow step chaining is for.
type RefactorTarget struct {
	FilePath string
	Range    protocol.Range
	Name     string
}

// RefactorAction discriminates the `refactor` tool's two supported
// actions (spec §6's tool surface).
type RefactorAction string

const (
	RefactorExtract RefactorAction = "extract"
	RefactorInline  RefactorAction = "inline"
)

// PlanRefactor handles the `refactor` tool's extract/inline actions the
// same way PlanReorder handles non-import reorders: ask the file's LSP
// server for a matching `refactor.extract.*`/`refactor.inline.*` code
// action over the target range and take its first match's edit. Reuses
// ReorderHandler's LSP plumbing since both are "ask the language server
// for a refactor.* code action, convert its edit to a plan" operations;
// a separate handler type would only duplicate clientFor/buildPlan.
func (h *ReorderHandler) PlanRefactor(ctx context.Context, action RefactorAction, target RefactorTarget) (planmodel.Plan, error) {
	var codeActionKind string
	switch action {
	case RefactorExtract:
		codeActionKind = "refactor.extract"
	case RefactorInline:
		codeActionKind = "refactor.inline"
	default:
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest,
			"unsupported refactor action %q, must be one of: extract, inline", action)
	}

	ext, client, absPath, err := h.clientFor(ctx, target.FilePath)
	if err != nil {
		return planmodel.Plan{}, err
	}

	params := protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(corepath.ToFileURI(absPath))},
		Range:        target.Range,
		Context: protocol.CodeActionContext{
			Diagnostics: []protocol.Diagnostic{},
			Only:        []protocol.CodeActionKind{protocol.CodeActionKind(codeActionKind)},
		},
	}

	var actions []protocol.CodeAction
	if err := client.SendRequest(ctx, "textDocument/codeAction", params, &actions); err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.LspError, err,
			"%s refactor requires LSP server support: code action request failed", action)
	}

	var match *protocol.CodeAction
	for i := range actions {
		if strings.HasPrefix(string(actions[i].Kind), codeActionKind) {
			match = &actions[i]
			break
		}
	}
	if match == nil || match.Edit == nil {
		return planmodel.Plan{}, corexerr.New(corexerr.NotSupported,
			"no %s code action available from LSP for %s", codeActionKind, absPath)
	}

	return h.buildPlan(absPath, ext, *match.Edit)
}
