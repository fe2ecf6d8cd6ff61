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

// Package corexerr defines the error taxonomy shared by every core
// component: planners, the executor, the LSP pool, and the dispatcher
// all report failures as a *corexerr.Error so callers can switch on Kind
// rather than parse message strings.
package corexerr

import (
	"errors"
	"fmt"

	"github.com/agext/levenshtein"
)

// Kind discriminates the taxonomy from spec §7.
type Kind string

const (
	InvalidRequest   Kind = "InvalidRequest"
	NotFound         Kind = "NotFound"
	NotSupported     Kind = "NotSupported"
	ChecksumMismatch Kind = "ChecksumMismatch"
	Conflict         Kind = "Conflict"
	LspError         Kind = "LspError"
	ParseError       Kind = "ParseError"
	Timeout          Kind = "Timeout"
	Internal         Kind = "Internal"
)

// Error is the structured failure carried on every planning and apply
// response. Candidates is populated for NotFound/ambiguity cases with
// fuzzy-matched suggestions (see Suggest).
type Error struct {
	Kind       Kind
	Message    string
	Candidates []string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no cause and no candidates.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithCandidates attaches fuzzy-match suggestions to an Error and returns it.
func (e *Error) WithCandidates(candidates []string) *Error {
	e.Candidates = candidates
	return e
}

// As reports whether err's chain contains a *corexerr.Error, the same way
// the stdlib errors.As works, and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *corexerr.Error, or Internal otherwise.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// Suggest returns the up-to-`limit` closest strings in candidates to
// target by Levenshtein distance, for use as Error.Candidates on a
// NotFound or plugin-ambiguity error. Candidates farther than maxDistance
// are dropped entirely rather than padding the list with noise.
func Suggest(target string, candidates []string, limit, maxDistance int) []string {
	type scored struct {
		name string
		dist int
	}
	var ranked []scored
	for _, c := range candidates {
		d := levenshtein.Distance(target, c, nil)
		if d <= maxDistance {
			ranked = append(ranked, scored{c, d})
		}
	}
	// simple insertion sort: candidate lists are small (symbols in one file,
	// plugin names in one registry), no need for sort.Slice overhead here.
	for i := 1; i < len(ranked); i++ {
		j := i
		for j > 0 && ranked[j-1].dist > ranked[j].dist {
			ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
			j--
		}
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}
	return out
}
