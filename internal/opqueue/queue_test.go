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

package opqueue_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bennypowers/millwright/internal/checksum"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/opqueue"
)

func TestTransactionCreatesFile(t *testing.T) {
	dir := t.TempDir()
	q := opqueue.New()
	defer q.Stop()

	target := filepath.Join(dir, "new.go")
	tx := opqueue.NewTransaction(q)
	tx.AddOperation(opqueue.FileOperation{Type: opqueue.OpCreateFile, Path: target, Content: []byte("package root\n")})

	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, q.WaitUntilIdle(context.Background()))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "package root\n", string(content))
}

func TestTransactionDetectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	q := opqueue.New()
	defer q.Stop()

	target := filepath.Join(dir, "existing.go")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	tx := opqueue.NewTransaction(q)
	tx.AddOperation(opqueue.FileOperation{
		Type: opqueue.OpWrite, Path: target, Content: []byte("changed"),
		ExpectedChecksum: checksum.Digest("not-the-real-checksum"),
	})

	err := tx.Commit(context.Background())
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.ChecksumMismatch, e.Kind)

	content, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	require.Equal(t, "original", string(content))
}

func TestBatchRollsBackOnMidBatchFailure(t *testing.T) {
	dir := t.TempDir()
	q := opqueue.New()
	defer q.Stop()

	a := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(a, []byte("original-a"), 0o644))
	missing := filepath.Join(dir, "missing.go")

	tx := opqueue.NewTransaction(q)
	tx.AddOperation(opqueue.FileOperation{Type: opqueue.OpWrite, Path: a, Content: []byte("new-a")})
	tx.AddOperation(opqueue.FileOperation{Type: opqueue.OpDelete, Path: missing})

	err := tx.Commit(context.Background())
	require.Error(t, err)

	content, readErr := os.ReadFile(a)
	require.NoError(t, readErr)
	require.Equal(t, "original-a", string(content))
}

func TestWaitUntilIdleRespectsContextTimeout(t *testing.T) {
	q := opqueue.New()
	defer q.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	_ = q.WaitUntilIdle(ctx)
}
