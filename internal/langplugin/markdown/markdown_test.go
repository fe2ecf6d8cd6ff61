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

package markdown_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bennypowers/millwright/internal/langplugin/markdown"
)

func TestRewriteImportsForMoveUpdatesMatchingLink(t *testing.T) {
	p := markdown.New()
	mover, ok := p.ImportMoveSupport()
	require.True(t, ok)

	src := []byte("See the [guide](./docs/guide.md) for details.\n")
	out, count, err := mover.RewriteImportsForMove(src, "./docs/guide.md", "./docs/moved-guide.md")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Contains(t, string(out), "(./docs/moved-guide.md)")
}

func TestRewriteImportsForMoveLeavesUnrelatedLinksAlone(t *testing.T) {
	p := markdown.New()
	mover, ok := p.ImportMoveSupport()
	require.True(t, ok)

	src := []byte("See the [guide](./docs/guide.md) and [other](./docs/other.md).\n")
	out, count, err := mover.RewriteImportsForMove(src, "./docs/guide.md", "./docs/moved.md")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Contains(t, string(out), "(./docs/other.md)")
	require.Contains(t, string(out), "(./docs/moved.md)")
}

func TestRewriteImportsForMoveNoMatchReturnsUnchanged(t *testing.T) {
	p := markdown.New()
	mover, ok := p.ImportMoveSupport()
	require.True(t, ok)

	src := []byte("No relative links here, just https://example.com.\n")
	out, count, err := mover.RewriteImportsForMove(src, "./docs/guide.md", "./docs/moved.md")
	require.NoError(t, err)
	require.Equal(t, 0, count)
	require.Equal(t, src, out)
}
