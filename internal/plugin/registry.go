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

package plugin

import (
	"sort"
	"sync"

	"github.com/bennypowers/millwright/internal/corexerr"
)

// Registry maps a file extension to its Plugin. get_plugin is O(1); All
// returns every registered plugin. Selection by extension uses a
// per-extension priority table; when two plugins tie and ambiguity is
// disallowed, Get fails naming the candidates; when allowed, the
// lexicographically smallest plugin name wins.
type Registry struct {
	mu               sync.RWMutex
	byExtension      map[string][]Plugin // candidates in registration order
	priorities       map[string][]string // extension -> ordered plugin names, highest priority first
	errorOnAmbiguity bool
	all              []Plugin
}

// NewRegistry builds an empty Registry.
func NewRegistry(errorOnAmbiguity bool) *Registry {
	return &Registry{
		byExtension:      make(map[string][]Plugin),
		priorities:       make(map[string][]string),
		errorOnAmbiguity: errorOnAmbiguity,
	}
}

// Register adds a plugin under each of its declared extensions.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, p)
	for _, ext := range p.Extensions() {
		r.byExtension[ext] = append(r.byExtension[ext], p)
	}
}

// SetPriority declares an explicit plugin-name precedence order for an
// extension, e.g. when two plugins both claim ".ts".
func (r *Registry) SetPriority(extension string, pluginNamesHighestFirst []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priorities[extension] = pluginNamesHighestFirst
}

// All returns every registered plugin.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.all))
	copy(out, r.all)
	return out
}

// Get resolves the plugin for a file extension (e.g. ".rs", not "rs").
func (r *Registry) Get(extension string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.byExtension[extension]
	switch len(candidates) {
	case 0:
		return nil, corexerr.New(corexerr.NotSupported, "no language plugin registered for extension %q", extension)
	case 1:
		return candidates[0], nil
	}

	if order, ok := r.priorities[extension]; ok {
		rank := make(map[string]int, len(order))
		for i, name := range order {
			rank[name] = i
		}
		best := candidates[0]
		bestRank, known := rank[best.Name()], false
		if r, ok := rank[best.Name()]; ok {
			bestRank, known = r, true
		}
		for _, c := range candidates[1:] {
			if r, ok := rank[c.Name()]; ok && (!known || r < bestRank) {
				best, bestRank, known = c, r, true
			}
		}
		if known {
			return best, nil
		}
	}

	if r.errorOnAmbiguity {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name()
		}
		sort.Strings(names)
		return nil, corexerr.New(corexerr.Conflict,
			"ambiguous plugin selection for extension %q: candidates %v", extension, names)
	}

	// Lexicographically smallest plugin name wins.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Name() < best.Name() {
			best = c
		}
	}
	return best, nil
}
