package handler_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionHandler_RoutesAnnotated(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "extraction_handler.go", nil, parser.ParseComments)
	require.NoError(t, err)

	checked := 0
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || !fn.Name.IsExported() {
			continue
		}
		star, ok := fn.Recv.List[0].Type.(*ast.StarExpr)
		if !ok || star.X.(*ast.Ident).Name != "ExtractionHandler" {
			continue
		}
		checked++
		require.NotNil(t, fn.Doc, fn.Name.Name)
		doc := fn.Doc.Text()
		assert.Contains(t, doc, "@Summary", fn.Name.Name)
		assert.Contains(t, doc, "@Tags", fn.Name.Name)
		assert.True(t, strings.Contains(doc, "@Router /extractions") || strings.Contains(doc, "@Router /profiles"), fn.Name.Name)
	}
	assert.Equal(t, 9, checked)
}
