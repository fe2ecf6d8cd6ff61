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
	"os"
	"path/filepath"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bennypowers/millwright/internal/checksum"
	"github.com/bennypowers/millwright/internal/corepath"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/lsppool"
	"github.com/bennypowers/millwright/internal/planmodel"
	"github.com/bennypowers/millwright/internal/plugin"
)

// ReorderTarget names what's being reordered and where in the file the
// reorder is anchored (a parameter list, struct, import block, or
// statement run starting at Position).
type ReorderTarget struct {
	Kind     string // "parameters" | "fields" | "imports" | "statements"
	FilePath string
	Position protocol.Position
}

// ReorderHandler builds reorder plans by delegating to the LSP server for
// the target file's language. Ported from codebuddy's ReorderHandler
// (crates/mill-handlers/src/handlers/reorder_handler.rs, read in full):
// "imports" goes straight to textDocument/organizeImports, the other
// three kinds ask for a refactor.reorder.* code action and use whichever
// edit the first matching action carries.
type ReorderHandler struct {
	Pool     *lsppool.Pool
	Registry *plugin.Registry
}

// NewReorderHandler builds a ReorderHandler over an LSP pool and plugin
// registry (used only to name the plan's language).
func NewReorderHandler(pool *lsppool.Pool, registry *plugin.Registry) *ReorderHandler {
	return &ReorderHandler{Pool: pool, Registry: registry}
}

// PlanReorder dispatches on target.Kind and returns the resulting plan.
func (h *ReorderHandler) PlanReorder(ctx context.Context, target ReorderTarget) (planmodel.Plan, error) {
	switch target.Kind {
	case "parameters":
		return h.tryLSPReorder(ctx, target, "refactor.reorder.parameters")
	case "fields":
		return h.tryLSPReorder(ctx, target, "refactor.reorder.fields")
	case "imports":
		return h.planReorderImports(ctx, target)
	case "statements":
		return h.tryLSPReorder(ctx, target, "refactor.reorder.statements")
	default:
		return planmodel.Plan{}, corexerr.New(corexerr.InvalidRequest,
			"unsupported reorder kind %q, must be one of: parameters, fields, imports, statements", target.Kind)
	}
}

func (h *ReorderHandler) planReorderImports(ctx context.Context, target ReorderTarget) (planmodel.Plan, error) {
	ext, client, absPath, err := h.clientFor(ctx, target.FilePath)
	if err != nil {
		return planmodel.Plan{}, err
	}

	// textDocument/organizeImports isn't part of base LSP 3.16; glsp has no
	// named params type for it, so build the request body inline the way
	// the original handler does with a raw JSON object.
	params := struct {
		TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	}{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(corepath.ToFileURI(absPath))},
	}
	var edit protocol.WorkspaceEdit
	if err := client.SendRequest(ctx, "textDocument/organizeImports", params, &edit); err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.LspError, err, "LSP organizeImports failed for %s", absPath)
	}

	return h.buildPlan(absPath, ext, edit)
}

func (h *ReorderHandler) tryLSPReorder(ctx context.Context, target ReorderTarget, codeActionKind string) (planmodel.Plan, error) {
	ext, client, absPath, err := h.clientFor(ctx, target.FilePath)
	if err != nil {
		return planmodel.Plan{}, err
	}

	rng := protocol.Range{Start: target.Position, End: target.Position}
	params := protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(corepath.ToFileURI(absPath))},
		Range:        rng,
		Context: protocol.CodeActionContext{
			Diagnostics: []protocol.Diagnostic{},
			Only:        []protocol.CodeActionKind{protocol.CodeActionKind(codeActionKind)},
		},
	}

	var actions []protocol.CodeAction
	if err := client.SendRequest(ctx, "textDocument/codeAction", params, &actions); err != nil {
		return planmodel.Plan{}, corexerr.Wrap(corexerr.LspError, err,
			"%s reorder requires LSP server support: code action request failed", target.Kind)
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

func (h *ReorderHandler) clientFor(ctx context.Context, path string) (ext string, client *lsppool.Client, absPath string, err error) {
	ext = filepath.Ext(path)
	if ext == "" {
		return "", nil, "", corexerr.New(corexerr.InvalidRequest, "file has no extension: %s", path)
	}
	ext = ext[1:]

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, "", corexerr.Wrap(corexerr.Internal, err, "resolving absolute path for %s", path)
	}

	client, err = h.Pool.GetOrCreateClient(ctx, ext)
	if err != nil {
		return "", nil, "", corexerr.Wrap(corexerr.NotSupported, err, "no LSP server configured for extension %q", ext)
	}
	return ext, client, abs, nil
}

func (h *ReorderHandler) buildPlan(absPath, ext string, edit protocol.WorkspaceEdit) (planmodel.Plan, error) {
	return h.buildPlanOfKind(absPath, ext, planmodel.KindReorder, edit)
}

// buildPlanOfKind is buildPlan generalized over the plan kind, shared by
// every handler (reorder, refactor, rename) that converts a single LSP
// WorkspaceEdit response into a single-origin-file plan.
func (h *ReorderHandler) buildPlanOfKind(absPath, ext string, kind planmodel.PlanKind, edit protocol.WorkspaceEdit) (planmodel.Plan, error) {
	workspaceEdit, err := ConvertWorkspaceEdit(edit)
	if err != nil {
		return planmodel.Plan{}, err
	}

	affected := make([]string, 0, len(workspaceEdit))
	checksums := make(checksum.Map, len(workspaceEdit))
	for file := range workspaceEdit {
		content, err := os.ReadFile(file)
		if err != nil {
			return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "reading %s for checksum", file)
		}
		affected = append(affected, file)
		checksums[file] = checksum.OfBytes(content)
	}
	if len(affected) == 0 {
		content, err := os.ReadFile(absPath)
		if err != nil {
			return planmodel.Plan{}, corexerr.Wrap(corexerr.Internal, err, "reading %s for checksum", absPath)
		}
		affected = []string{absPath}
		checksums = checksum.Map{absPath: checksum.OfBytes(content)}
	}

	language := ext
	if h.Registry != nil {
		if pl, err := h.Registry.Get("." + ext); err == nil {
			language = pl.Name()
		}
	}

	impact := planmodel.ImpactLow
	if len(affected) > 5 {
		impact = planmodel.ImpactHigh
	} else if len(affected) > 1 {
		impact = planmodel.ImpactMedium
	}

	return planmodel.Plan{
		PlanType:      kind,
		AffectedFiles: affected,
		FileChecksums: checksums,
		Summary:       planmodel.Summary{AffectedFiles: len(affected)},
		WorkspaceEdit: workspaceEdit,
		Metadata: planmodel.Metadata{
			PlanVersion:     1,
			Kind:            kind,
			Language:        language,
			EstimatedImpact: impact,
			CreatedAt:       now(),
		},
	}, nil
}

