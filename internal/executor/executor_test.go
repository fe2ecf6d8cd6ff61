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

package executor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bennypowers/millwright/internal/checksum"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/executor"
	"github.com/bennypowers/millwright/internal/opqueue"
	"github.com/bennypowers/millwright/internal/planmodel"
)

func TestApplyRewritesFileFromReplaceEdits(t *testing.T) {
	dir := t.TempDir()
	q := opqueue.New()
	defer q.Stop()

	target := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n\nfunc Foo() {}\n"), 0o644))
	digest, err := checksum.OfFile(target)
	require.NoError(t, err)

	plan := planmodel.Plan{
		PlanType:      planmodel.KindRename,
		AffectedFiles: []string{target},
		FileChecksums: checksum.Map{target: digest},
		Edits: []planmodel.Edit{
			{
				File:     target,
				Kind:     planmodel.EditReplace,
				Location: planmodel.Location{StartLine: 2, StartColumn: 5, EndLine: 2, EndColumn: 8},
				NewText:  "Bar",
				Priority: 1,
			},
		},
	}

	result, err := executor.Apply(context.Background(), q, plan, executor.DefaultOptions())
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.Equal(t, []string{target}, result.FilesChanged)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "package main\n\nfunc Bar() {}\n", string(content))
}

func TestApplyRejectsStalePlan(t *testing.T) {
	dir := t.TempDir()
	q := opqueue.New()
	defer q.Stop()

	target := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	plan := planmodel.Plan{
		PlanType:      planmodel.KindRename,
		FileChecksums: checksum.Map{target: checksum.Digest("stale-digest")},
		Edits: []planmodel.Edit{
			{File: target, Kind: planmodel.EditReplace, NewText: "changed"},
		},
	}

	_, err := executor.Apply(context.Background(), q, plan, executor.DefaultOptions())
	require.Error(t, err)
	e, ok := corexerr.As(err)
	require.True(t, ok)
	require.Equal(t, corexerr.ChecksumMismatch, e.Kind)

	content, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	require.Equal(t, "original", string(content))
}

func TestApplySkipsChecksumValidationWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	q := opqueue.New()
	defer q.Stop()

	target := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(target, []byte("one line only\n"), 0o644))

	plan := planmodel.Plan{
		PlanType:      planmodel.KindRename,
		FileChecksums: checksum.Map{target: checksum.Digest("does-not-matter")},
		Edits: []planmodel.Edit{
			{
				File:     target,
				Kind:     planmodel.EditReplace,
				Location: planmodel.Location{StartLine: 0, StartColumn: 0, EndLine: 0, EndColumn: 3},
				NewText:  "two",
			},
		},
	}

	result, err := executor.Apply(context.Background(), q, plan, executor.Options{ValidateChecksums: false})
	require.NoError(t, err)
	require.True(t, result.Applied)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "two line only\n", string(content))
}

func TestApplyDeletePlanRemovesEveryChecksummedFile(t *testing.T) {
	dir := t.TempDir()
	q := opqueue.New()
	defer q.Stop()

	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	require.NoError(t, os.WriteFile(a, []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("package b"), 0o644))
	digestA, err := checksum.OfFile(a)
	require.NoError(t, err)
	digestB, err := checksum.OfFile(b)
	require.NoError(t, err)

	plan := planmodel.Plan{
		PlanType:      planmodel.KindDelete,
		FileChecksums: checksum.Map{a: digestA, b: digestB},
		Deletions:     []planmodel.Deletion{{File: a}, {File: b}},
	}

	result, err := executor.Apply(context.Background(), q, plan, executor.DefaultOptions())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{a, b}, result.FilesDeleted)

	_, err = os.Stat(a)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(b)
	require.True(t, os.IsNotExist(err))
}

func TestApplyCreateEditWritesNewFile(t *testing.T) {
	dir := t.TempDir()
	q := opqueue.New()
	defer q.Stop()

	target := filepath.Join(dir, "new.go")
	plan := planmodel.Plan{
		PlanType: planmodel.KindMove,
		Edits: []planmodel.Edit{
			{File: target, Kind: planmodel.EditCreate, NewText: "package new\n"},
		},
	}

	result, err := executor.Apply(context.Background(), q, plan, executor.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, []string{target}, result.FilesCreated)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "package new\n", string(content))
}
