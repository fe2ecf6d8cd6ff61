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

// Package typescript is the TypeScript/JavaScript language plugin (spec
// §3/§4.A). Import parsing uses the same tree-sitter parser-pool and
// embedded-query pattern as the teacher's queries package: a sync.Pool of
// parsers bound to the TypeScript grammar, and a compiled query run once
// per file, exactly the shape of queries.RetrieveTypeScriptParser plus
// GetCachedQueryMatcher. Import/export node ranges come straight off the
// tree-sitter node's StartPosition/EndPosition, giving exact 0-based
// line/character coordinates for rename/move edits without any separate
// byte-offset-to-position pass.
package typescript

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/bennypowers/millwright/internal/planmodel"
	"github.com/bennypowers/millwright/internal/plugin"
)

//go:embed queries/*.scm
var queryFS embed.FS

var language = ts.NewLanguage(tsTypescript.LanguageTypescript())

var parserPool = sync.Pool{
	New: func() any {
		p := ts.NewParser()
		if err := p.SetLanguage(language); err != nil {
			panic(fmt.Sprintf("typescript plugin: failed to set language: %v", err))
		}
		return p
	},
}

var importsQuery = sync.OnceValues(func() (*ts.Query, error) {
	data, err := queryFS.ReadFile("queries/imports.scm")
	if err != nil {
		return nil, err
	}
	return ts.NewQuery(language, string(data))
})

// Plugin is the TypeScript/JavaScript language plugin.
type Plugin struct {
	plugin.BasePlugin
}

// New constructs the TypeScript plugin.
func New() *Plugin {
	return &Plugin{plugin.BasePlugin{
		PluginName:       "typescript",
		PluginExtensions: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
	}}
}

func (p *Plugin) ImportParser() (plugin.ImportParser, bool)           { return parser_{}, true }
func (p *Plugin) ImportRenameSupport() (plugin.ImportRenameSupport, bool) { return rewriter{}, true }
func (p *Plugin) ImportMoveSupport() (plugin.ImportMoveSupport, bool) { return rewriter{}, true }

type parser_ struct{}

func (parser_) ParseImports(content []byte) ([]plugin.ImportInfo, error) {
	query, err := importsQuery()
	if err != nil {
		return nil, err
	}

	parser := parserPool.Get().(*ts.Parser)
	defer parserPool.Put(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("typescript: failed to parse content (%d bytes)", len(content))
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	names := query.CaptureNames()
	var imports []plugin.ImportInfo

	matches := cursor.Matches(query, tree.RootNode(), content)
	for {
		m := matches.Next()
		if m == nil {
			break
		}

		var sourceNode *ts.Node
		var isDynamic, isTypeOnly bool
		var namedBindings []string
		var defaultBinding, namespaceBinding string

		for _, cap := range m.Captures {
			name := names[cap.Index]
			node := cap.Node
			switch name {
			case "import.source", "export.source":
				sourceNode = &node
			case "import.dynamic.source":
				sourceNode = &node
				isDynamic = true
			case "import.type":
				isTypeOnly = true
			case "import.named":
				namedBindings = append(namedBindings, node.Utf8Text(content))
			case "import.default":
				defaultBinding = node.Utf8Text(content)
			case "import.namespace":
				namespaceBinding = node.Utf8Text(content)
			}
		}
		if sourceNode == nil {
			continue
		}

		modulePath := unquote(sourceNode.Utf8Text(content))
		kind := plugin.ImportEsModule
		if isDynamic {
			kind = plugin.ImportDynamic
		}

		start := sourceNode.StartPosition()
		end := sourceNode.EndPosition()
		imports = append(imports, plugin.ImportInfo{
			ModulePath:       modulePath,
			Kind:             kind,
			NamedBindings:    namedBindings,
			DefaultBinding:   defaultBinding,
			NamespaceBinding: namespaceBinding,
			TypeOnly:         isTypeOnly,
			Range: planmodel.Location{
				StartLine: uint32(start.Row), StartColumn: uint32(start.Column),
				EndLine: uint32(end.Row), EndColumn: uint32(end.Column),
			},
		})
	}
	return imports, nil
}

func unquote(raw string) string {
	if len(raw) >= 2 {
		if v, err := strconv.Unquote(raw); err == nil {
			return v
		}
		return raw[1 : len(raw)-1]
	}
	return raw
}

type rewriter struct{}

// RewriteImportsForRename rewrites the final path segment of every
// import specifier whose last segment (or whole value) is oldName to
// newName, relative or not, leaving the rest of the specifier and all
// non-matching imports untouched.
func (rewriter) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	imports, err := (parser_{}).ParseImports(content)
	if err != nil {
		return content, 0, err
	}
	lines := strings.Split(string(content), "\n")
	count := 0
	for _, imp := range imports {
		if !strings.HasSuffix(imp.ModulePath, "/"+oldName) && imp.ModulePath != oldName {
			continue
		}
		rewritten := strings.TrimSuffix(imp.ModulePath, oldName) + newName
		replaceSpecifierAt(lines, imp.Range, imp.ModulePath, rewritten)
		count++
	}
	return []byte(strings.Join(lines, "\n")), count, nil
}

// RewriteImportsForMove rewrites relative import specifiers that resolve
// to oldPath so they resolve to newPath instead, preserving "./" vs
// "../" style. The caller supplies module-specifier-shaped paths (already
// relative to the importing file), matching how the Import Graph compares
// resolved specifiers to file paths.
func (rewriter) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	imports, err := (parser_{}).ParseImports(content)
	if err != nil {
		return content, 0, err
	}
	lines := strings.Split(string(content), "\n")
	count := 0
	for _, imp := range imports {
		if imp.ModulePath != oldPath {
			continue
		}
		replaceSpecifierAt(lines, imp.Range, imp.ModulePath, newPath)
		count++
	}
	return []byte(strings.Join(lines, "\n")), count, nil
}

// replaceSpecifierAt substitutes the quoted specifier text on a single
// source line (import/export "from" clauses never span multiple lines)
// with newSpecifier, preserving the surrounding quote characters.
func replaceSpecifierAt(lines []string, loc planmodel.Location, oldSpecifier, newSpecifier string) {
	if int(loc.StartLine) >= len(lines) {
		return
	}
	line := lines[loc.StartLine]
	quoted := `"` + oldSpecifier + `"`
	if idx := strings.Index(line, quoted); idx >= 0 {
		lines[loc.StartLine] = line[:idx] + `"` + newSpecifier + `"` + line[idx+len(quoted):]
		return
	}
	quotedSingle := `'` + oldSpecifier + `'`
	if idx := strings.Index(line, quotedSingle); idx >= 0 {
		lines[loc.StartLine] = line[:idx] + `'` + newSpecifier + `'` + line[idx+len(quotedSingle):]
	}
}
