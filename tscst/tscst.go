// Package tscst wraps the tolerant tree-sitter SQL grammar. Completion
// and hover run on this tree so they keep working while the user types
// text libpg_query rejects. The rule engine never reads it.
package tscst

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/sql"

	"github.com/postgrestools/pgtools/text"
)

// Tree is a parsed concrete syntax tree over one document's bytes.
type Tree struct {
	src  []byte
	tree *sitter.Tree
}

// Parse builds a tree for src. Syntax errors do not fail the parse;
// they show up as error nodes inside the tree.
func Parse(ctx context.Context, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(sql.GetLanguage())
	t, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	return &Tree{src: src, tree: t}, nil
}

// Root returns the root node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// NodeAt returns the smallest named node covering the byte offset, or
// nil when the offset is outside the tree.
func (t *Tree) NodeAt(off text.Size) *sitter.Node {
	end := uint32(off)
	if end < uint32(len(t.src)) {
		end++
	}
	// tree-sitter points count rows and byte columns
	point := func(b uint32) sitter.Point {
		var p sitter.Point
		for i := uint32(0); i < b && i < uint32(len(t.src)); i++ {
			if t.src[i] == '\n' {
				p.Row, p.Column = p.Row+1, 0
			} else {
				p.Column++
			}
		}
		return p
	}
	return t.Root().NamedDescendantForPointRange(point(uint32(off)), point(end))
}

// NodeRange converts a node's byte span.
func NodeRange(n *sitter.Node) text.Range {
	return text.NewRange(text.Size(n.StartByte()), text.Size(n.EndByte()))
}

// InComment reports whether the offset sits inside a comment node.
func (t *Tree) InComment(off text.Size) bool {
	for n := t.NodeAt(off); n != nil; n = n.Parent() {
		if n.Type() == "comment" || n.Type() == "marginalia" {
			return true
		}
	}
	return false
}

// Content returns a node's bytes.
func (t *Tree) Content(n *sitter.Node) string {
	return n.Content(t.src)
}

// Close releases the native tree.
func (t *Tree) Close() {
	t.tree.Close()
}
