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

package lsppool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bennypowers/millwright/internal/config"
	"github.com/bennypowers/millwright/internal/corexerr"
)

func TestFindServerConfigMatchesByExtension(t *testing.T) {
	cfg := config.LSPConfig{Servers: []config.LSPServerConfig{
		{Extensions: []string{"ts", "tsx"}, Command: []string{"typescript-language-server", "--stdio"}},
		{Extensions: []string{"rs"}, Command: []string{"rust-analyzer"}},
	}}

	server, ok := findServerConfig(cfg, "rs")
	require.True(t, ok)
	require.Equal(t, []string{"rust-analyzer"}, server.Command)

	_, ok = findServerConfig(cfg, "py")
	require.False(t, ok)
}

func TestGetOrCreateClientReturnsNotSupportedForUnknownExtension(t *testing.T) {
	p := New(config.LSPConfig{})
	_, err := p.GetOrCreateClient(context.Background(), "zig")
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.NotSupported, e.Kind)
}
