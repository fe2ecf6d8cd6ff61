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

package planbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bennypowers/millwright/internal/planbuilder"
	"github.com/bennypowers/millwright/internal/planmodel"
)

func TestConvertWorkspaceEditSimpleChanges(t *testing.T) {
	changes := map[protocol.DocumentUri][]protocol.TextEdit{
		"file:///project/src/lib.rs": {
			{Range: protocol.Range{Start: protocol.Position{Line: 1, Character: 0}, End: protocol.Position{Line: 1, Character: 5}}, NewText: "hello"},
			{Range: protocol.Range{Start: protocol.Position{Line: 3, Character: 2}, End: protocol.Position{Line: 3, Character: 7}}, NewText: "world"},
		},
	}
	edit := protocol.WorkspaceEdit{Changes: &changes}

	result, err := planbuilder.ConvertWorkspaceEdit(edit)
	require.NoError(t, err)
	require.Len(t, result, 1)

	edits := result["/project/src/lib.rs"]
	require.Len(t, edits, 2)
	// First edit in the response array carries the highest priority, so it
	// sorts first (descending priority).
	require.Equal(t, "hello", edits[0].NewText)
	require.Equal(t, 2, edits[0].Priority)
	require.Equal(t, "world", edits[1].NewText)
	require.Equal(t, 1, edits[1].Priority)
}

func TestConvertWorkspaceEditDocumentChangesOperations(t *testing.T) {
	edit := protocol.WorkspaceEdit{
		DocumentChanges: []interface{}{
			protocol.CreateFile{Kind: "create", URI: "file:///project/src/new_mod.rs"},
			protocol.RenameFile{Kind: "rename", OldURI: "file:///project/src/old.rs", NewURI: "file:///project/src/new.rs"},
			protocol.DeleteFile{Kind: "delete", URI: "file:///project/src/stale.rs"},
		},
	}

	result, err := planbuilder.ConvertWorkspaceEdit(edit)
	require.NoError(t, err)

	created := result["/project/src/new_mod.rs"]
	require.Len(t, created, 1)
	require.Equal(t, planmodel.EditCreate, created[0].Kind)

	renamed := result["/project/src/old.rs"]
	require.Len(t, renamed, 1)
	require.Equal(t, planmodel.EditMove, renamed[0].Kind)
	require.Equal(t, "/project/src/new.rs", renamed[0].NewPath)

	deleted := result["/project/src/stale.rs"]
	require.Len(t, deleted, 1)
	require.Equal(t, planmodel.EditDeleteFile, deleted[0].Kind)
}

func TestUriToPathDecodesSpaces(t *testing.T) {
	edit := protocol.WorkspaceEdit{
		DocumentChanges: []interface{}{
			protocol.DeleteFile{Kind: "delete", URI: "file:///project/My%20Folder/file.rs"},
		},
	}

	result, err := planbuilder.ConvertWorkspaceEdit(edit)
	require.NoError(t, err)

	_, ok := result["/project/My Folder/file.rs"]
	require.True(t, ok)
}

func TestExtractCreatedAndDeletedFiles(t *testing.T) {
	edits := []planmodel.Edit{
		{File: "a.rs", Kind: planmodel.EditCreate},
		{File: "b.rs", Kind: planmodel.EditDeleteFile},
		{File: "c.rs", Kind: planmodel.EditReplace},
	}

	require.Equal(t, []string{"a.rs"}, planbuilder.ExtractCreatedFiles(edits))
	require.Equal(t, []string{"b.rs"}, planbuilder.ExtractDeletedFiles(edits))
}
