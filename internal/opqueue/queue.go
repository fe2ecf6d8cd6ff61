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

// Package opqueue is the serialized apply engine (spec §3/§4.E): a single
// background worker drains queued Batches one at a time so concurrent
// Apply calls never interleave writes to the same files. Ported from
// codebuddy's operation_queue/FileService pairing
// (crates/mill-services/src/services/filesystem/file_service/basic_ops.rs,
// read in full): callers build a Transaction of FileOperations, Commit
// it, then WaitUntilIdle to block for completion the same way the
// original's create_file/write_file/delete_file all do
// `transaction.commit().await` followed by `operation_queue.wait_until_idle().await`.
package opqueue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bennypowers/millwright/internal/checksum"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/logging"
)

var log = logging.GetLogger().Named("opqueue")

// OperationType discriminates one FileOperation's effect.
type OperationType string

const (
	OpCreateDir  OperationType = "CreateDir"
	OpCreateFile OperationType = "CreateFile"
	OpWrite      OperationType = "Write"
	OpDelete     OperationType = "Delete"
	OpMove       OperationType = "Move"
)

// FileOperation is one step of a Transaction: what to do, to which path,
// with which expected starting checksum (empty means "don't check").
type FileOperation struct {
	SubmittedBy      string
	Type             OperationType
	Path             string
	NewPath          string // for OpMove
	Content          []byte // for OpCreateFile/OpWrite
	ExpectedChecksum checksum.Digest
}

// Result records one operation's outcome within a completed Batch.
type Result struct {
	Operation FileOperation
	Err       error
}

// Transaction accumulates FileOperations and commits them to a Queue as
// one atomically-applied Batch.
type Transaction struct {
	queue *Queue
	ops   []FileOperation
}

// NewTransaction starts an empty transaction against q.
func NewTransaction(q *Queue) *Transaction {
	return &Transaction{queue: q}
}

// AddOperation appends one step to the transaction.
func (t *Transaction) AddOperation(op FileOperation) {
	t.ops = append(t.ops, op)
}

// Commit enqueues the transaction's operations as a single Batch and
// returns immediately; the batch applies on the background worker.
// Callers that need to observe the result call WaitUntilIdle afterward,
// matching the original's commit-then-wait_until_idle pairing.
func (t *Transaction) Commit(ctx context.Context) error {
	return t.queue.enqueue(ctx, t.ops)
}

type batch struct {
	ops  []FileOperation
	done chan struct{}
	res  []Result
}

// Queue serializes Batches through a single background worker goroutine,
// applying each batch's operations in order as one all-or-nothing unit:
// each write goes to a sibling temp file that is then renamed into place,
// after any existing content has been backed up. A failure anywhere in
// the batch undoes every already-applied operation in reverse order, so
// originals are restored.
type Queue struct {
	mu      sync.Mutex
	pending []*batch
	notify  chan struct{}
	idle    sync.WaitGroup

	closeOnce sync.Once
	stop      chan struct{}
}

// New starts a Queue with its background worker running.
func New() *Queue {
	q := &Queue{notify: make(chan struct{}, 1), stop: make(chan struct{})}
	go q.run()
	return q
}

// Stop halts the background worker; pending batches are abandoned.
func (q *Queue) Stop() {
	q.closeOnce.Do(func() { close(q.stop) })
}

func (q *Queue) enqueue(ctx context.Context, ops []FileOperation) error {
	b := &batch{ops: ops, done: make(chan struct{})}
	q.mu.Lock()
	q.pending = append(q.pending, b)
	q.idle.Add(1)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	select {
	case <-b.done:
		return firstError(b.res)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// WaitUntilIdle blocks until every currently queued batch has finished
// applying (or failed), mirroring the original's wait_until_idle.
func (q *Queue) WaitUntilIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.idle.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	for {
		select {
		case <-q.stop:
			return
		case <-q.notify:
		}
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			b := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()

			b.res = applyBatch(b.ops)
			close(b.done)
			q.idle.Done()
		}
	}
}

// applyBatch applies the operations one by one; if any operation fails,
// everything already applied is rolled back, the failing operation
// reports its error, and every later operation reports the same error
// wrapped as "batch aborted". Results of the earlier, rolled-back
// operations carry no error.
func applyBatch(ops []FileOperation) []Result {
	results := make([]Result, len(ops))
	type staged struct {
		op      FileOperation
		tmpPath string
		backup  string // original content's temp backup, for Delete rollback
	}
	var committed []staged

	rollback := func() {
		if len(committed) > 0 {
			log.Warn("rolling back %d staged operation(s) after batch failure", len(committed))
		}
		for i := len(committed) - 1; i >= 0; i-- {
			s := committed[i]
			switch s.op.Type {
			case OpCreateFile, OpWrite:
				if s.backup != "" {
					_ = os.Rename(s.backup, s.op.Path)
				} else {
					_ = os.Remove(s.op.Path)
				}
			case OpDelete:
				if s.backup != "" {
					_ = os.Rename(s.backup, s.op.Path)
				}
			case OpMove:
				_ = os.Rename(s.op.NewPath, s.op.Path)
			case OpCreateDir:
				_ = os.Remove(s.op.Path)
			}
		}
	}

	for i, op := range ops {
		if err := checkChecksum(op); err != nil {
			results[i] = Result{Operation: op, Err: err}
			rollback()
			return failRemaining(results, i, err)
		}

		switch op.Type {
		case OpCreateDir:
			if err := os.MkdirAll(op.Path, 0o755); err != nil {
				results[i] = Result{Operation: op, Err: corexerr.Wrap(corexerr.Internal, err, "creating directory %s", op.Path)}
				rollback()
				return failRemaining(results, i, results[i].Err)
			}
			committed = append(committed, staged{op: op})

		case OpCreateFile, OpWrite:
			var backup string
			if existing, err := os.ReadFile(op.Path); err == nil {
				backup = op.Path + ".opqueue.bak"
				if err := os.WriteFile(backup, existing, 0o644); err != nil {
					results[i] = Result{Operation: op, Err: corexerr.Wrap(corexerr.Internal, err, "backing up %s", op.Path)}
					rollback()
					return failRemaining(results, i, results[i].Err)
				}
			}
			tmp := op.Path + ".opqueue.tmp"
			if err := os.WriteFile(tmp, op.Content, 0o644); err != nil {
				results[i] = Result{Operation: op, Err: corexerr.Wrap(corexerr.Internal, err, "staging write to %s", op.Path)}
				rollback()
				return failRemaining(results, i, results[i].Err)
			}
			if err := os.Rename(tmp, op.Path); err != nil {
				results[i] = Result{Operation: op, Err: corexerr.Wrap(corexerr.Internal, err, "committing write to %s", op.Path)}
				rollback()
				return failRemaining(results, i, results[i].Err)
			}
			committed = append(committed, staged{op: op, backup: backup})

		case OpDelete:
			backup := op.Path + ".opqueue.bak"
			content, err := os.ReadFile(op.Path)
			if err != nil {
				results[i] = Result{Operation: op, Err: corexerr.Wrap(corexerr.NotFound, err, "reading %s before delete", op.Path)}
				rollback()
				return failRemaining(results, i, results[i].Err)
			}
			if err := os.WriteFile(backup, content, 0o644); err != nil {
				results[i] = Result{Operation: op, Err: corexerr.Wrap(corexerr.Internal, err, "backing up %s before delete", op.Path)}
				rollback()
				return failRemaining(results, i, results[i].Err)
			}
			if err := os.Remove(op.Path); err != nil {
				results[i] = Result{Operation: op, Err: corexerr.Wrap(corexerr.Internal, err, "deleting %s", op.Path)}
				rollback()
				return failRemaining(results, i, results[i].Err)
			}
			committed = append(committed, staged{op: op, backup: backup})

		case OpMove:
			if parent := filepath.Dir(op.NewPath); parent != "." {
				_ = os.MkdirAll(parent, 0o755)
			}
			if err := os.Rename(op.Path, op.NewPath); err != nil {
				results[i] = Result{Operation: op, Err: corexerr.Wrap(corexerr.Internal, err, "moving %s to %s", op.Path, op.NewPath)}
				rollback()
				return failRemaining(results, i, results[i].Err)
			}
			committed = append(committed, staged{op: op})

		default:
			err := corexerr.New(corexerr.InvalidRequest, "unknown operation type %q", op.Type)
			results[i] = Result{Operation: op, Err: err}
			rollback()
			return failRemaining(results, i, err)
		}

		results[i] = Result{Operation: op}
	}

	for _, s := range committed {
		if s.backup != "" {
			_ = os.Remove(s.backup)
		}
	}
	return results
}

func checkChecksum(op FileOperation) error {
	if op.ExpectedChecksum == "" {
		return nil
	}
	actual, err := checksum.OfFile(op.Path)
	if err != nil {
		return corexerr.Wrap(corexerr.Internal, err, "checksumming %s before apply", op.Path)
	}
	if actual != op.ExpectedChecksum {
		return corexerr.New(corexerr.ChecksumMismatch,
			"file %s changed since the plan was built (expected %s, got %s)", op.Path, op.ExpectedChecksum, actual)
	}
	return nil
}

func failRemaining(results []Result, failedAt int, err error) []Result {
	wrapped := fmt.Errorf("batch aborted: %w", err)
	for i := failedAt + 1; i < len(results); i++ {
		results[i] = Result{Err: wrapped}
	}
	return results
}
