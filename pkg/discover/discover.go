// Package discover extracts component seeds from Go source trees. Each
// scanned file becomes one dormant component (ID "file:<rel path>") whose
// exported functions, methods, and types are exposed as anchors. Seeds are
// expressed in the manifest model, so they apply to a local engine or ship
// to a daemon unchanged.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/isolink-io/isolink/pkg/anchor"
	"github.com/isolink-io/isolink/pkg/manifest"
)

const symbolQuery = `
	(function_declaration) @func
	(method_declaration) @method
	(type_spec) @type
`

const packageQuery = `(package_clause (package_identifier) @pkg)`

// Scanner walks Go source trees and emits component seeds.
type Scanner struct {
	// FunctionScore, when positive, gives every exported function anchor a
	// constant activation at that score. Zero leaves all anchors inert.
	FunctionScore float64
}

// Scan walks root and returns one component seed per parseable .go file.
// Vendor, testdata, hidden, and underscore-prefixed directories are skipped,
// as are test files. Files that cannot be read or parsed are skipped rather
// than failing the scan.
func (s *Scanner) Scan(root string) ([]manifest.Component, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	query, err := sitter.NewQuery([]byte(symbolQuery), golang.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create symbol query: %w", err)
	}
	pkgQuery, err := sitter.NewQuery([]byte(packageQuery), golang.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create package query: %w", err)
	}

	var seeds []manifest.Component
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSourceFile(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		source, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		tree, err := parser.ParseCtx(context.Background(), nil, source)
		if err != nil {
			return nil
		}

		seeds = append(seeds, s.fileSeed(rel, source, tree, query, pkgQuery))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return seeds, nil
}

func (s *Scanner) fileSeed(relPath string, source []byte, tree *sitter.Tree, query, pkgQuery *sitter.Query) manifest.Component {
	rel := filepath.ToSlash(relPath)
	pkgName := packageName(tree.RootNode(), source, pkgQuery)

	comp := manifest.Component{
		ID: "file:" + rel,
	}

	qc := sitter.NewQueryCursor()
	qc.Exec(query, tree.RootNode())
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			unit := captureUnit(query.CaptureNameForId(c.Index))
			nameNode := c.Node.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := nameNode.Content(source)
			if !isExported(name) {
				continue
			}

			res := manifest.Anchor{
				Name: name,
				Context: map[string]string{
					"path":    rel,
					"package": pkgName,
					"unit":    unit,
					"line":    strconv.Itoa(int(c.Node.StartPoint().Row + 1)),
				},
			}
			if unit == "function" && s.FunctionScore > 0 {
				res.Activation = &anchor.Spec{
					Kind:  anchor.KindConstant,
					Score: s.FunctionScore,
				}
			}
			comp.Anchors = append(comp.Anchors, res)
		}
	}
	return comp
}

func captureUnit(captureName string) string {
	switch captureName {
	case "func":
		return "function"
	case "method":
		return "method"
	default:
		return "type"
	}
}

func packageName(root *sitter.Node, source []byte, pkgQuery *sitter.Query) string {
	qc := sitter.NewQueryCursor()
	qc.Exec(pkgQuery, root)
	if m, ok := qc.NextMatch(); ok && len(m.Captures) > 0 {
		return m.Captures[0].Node.Content(source)
	}
	return ""
}

func skipDir(name string) bool {
	switch name {
	case "vendor", "testdata", "node_modules":
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func isSourceFile(name string) bool {
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
		return false
	}
	return !strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "_")
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
