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

package dispatcher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/dispatcher"
)

const renameSchema = `{
	"type": "object",
	"required": ["target", "newName"],
	"properties": {
		"target": {"type": "object", "required": ["kind", "path"]},
		"newName": {"type": "string"}
	}
}`

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	d := dispatcher.New()
	require.NoError(t, d.Register("rename_all", "rename a symbol", json.RawMessage(renameSchema),
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			return map[string]string{"status": "ok"}, nil
		}))

	args := json.RawMessage(`{"target":{"kind":"symbol","path":"a.go"},"newName":"Bar"}`)
	envelope, err := d.Dispatch(context.Background(), "rename_all", args, 0)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"status": "ok"}, envelope.Content)
}

func TestDispatchRejectsUnknownTool(t *testing.T) {
	d := dispatcher.New()
	_, err := d.Dispatch(context.Background(), "nope", json.RawMessage(`{}`), 0)
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.NotFound, e.Kind)
}

func TestDispatchRejectsArgumentsFailingSchema(t *testing.T) {
	d := dispatcher.New()
	require.NoError(t, d.Register("rename_all", "rename a symbol", json.RawMessage(renameSchema),
		func(ctx context.Context, raw json.RawMessage) (any, error) { return nil, nil }))

	_, err := d.Dispatch(context.Background(), "rename_all", json.RawMessage(`{"target":{}}`), 0)
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.InvalidRequest, e.Kind)
}

func TestDispatchAbortsOnTimeout(t *testing.T) {
	d := dispatcher.New()
	require.NoError(t, d.Register("slow", "a slow tool", json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			select {
			case <-time.After(time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}))

	_, err := d.Dispatch(context.Background(), "slow", json.RawMessage(`{}`), 10*time.Millisecond)
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.Timeout, e.Kind)
}

func TestRegisterRejectsInvalidSchema(t *testing.T) {
	d := dispatcher.New()
	err := d.Register("bad", "bad schema", json.RawMessage(`{"type": 123}`), nil)
	require.Error(t, err)
}
