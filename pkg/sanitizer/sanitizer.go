// Package sanitizer rewrites submitted Go source into a declaration-only file
// so that loading it performs no work before a test calls into it.
package sanitizer

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/tools/go/ast/astutil"
)

// DefaultPackage is the package every sanitized submission is moved into.
const DefaultPackage = "solution"

// Sanitizer filters top-level declarations of a Go source file.
type Sanitizer struct {
	pkg string

	mu       sync.Mutex
	importer types.Importer
}

// New returns a sanitizer that rewrites the package clause to pkg.
func New(pkg string) *Sanitizer {
	pkg = strings.TrimSpace(pkg)
	if pkg == "" {
		pkg = DefaultPackage
	}
	return &Sanitizer{pkg: pkg}
}

// Sanitize keeps imports, functions and methods (except init), type and
// const declarations. Package vars keep their initialiser when it cannot run
// code; otherwise they are declared with their zero value so the remaining
// code still compiles. Imports left unused are removed. The input is
// returned unchanged when it does not parse.
func (s *Sanitizer) Sanitize(source string) string {
	src := source
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "submission.go", src, parser.ParseComments)
	if err != nil && !hasPackageClause(source) {
		src = "package " + s.pkg + "\n\n" + source
		fset = token.NewFileSet()
		file, err = parser.ParseFile(fset, "submission.go", src, parser.ParseComments)
	}
	if err != nil {
		return source
	}

	info := s.check(fset, file)
	names := newImportNames(file, info)
	tf := fset.File(file.Pos())
	text := func(from, to token.Pos) string { return src[tf.Offset(from):tf.Offset(to)] }

	edits := []edit{{from: tf.Offset(file.Name.Pos()), to: tf.Offset(file.Name.End()), text: s.pkg}}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil && d.Name.Name == "init" {
				edits = append(edits, removal(tf, d, d.Doc))
			}
		case *ast.GenDecl:
			if d.Tok != token.VAR {
				continue
			}
			specs, changed := stripVars(d, info, names, text)
			switch {
			case !changed:
			case len(specs) == 0:
				edits = append(edits, removal(tf, d, d.Doc))
			default:
				edits = append(edits, edit{from: tf.Offset(d.Pos()), to: tf.Offset(d.End()), text: varDecl(specs, d.Lparen.IsValid())})
			}
		}
	}
	stripped := apply(src, edits)

	// Reparse so every node carries a position before imports are rewritten.
	fset = token.NewFileSet()
	file, err = parser.ParseFile(fset, "submission.go", stripped, parser.ParseComments)
	if err != nil {
		return stripped
	}
	pruneImports(fset, file, s.check(fset, file), names.added)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return stripped
	}
	return buf.String()
}

// Sanitize runs a default sanitizer.
func Sanitize(source string) string {
	return New(DefaultPackage).Sanitize(source)
}

// check type-checks file for var types and import usage. Errors are ignored:
// whatever the checker could resolve is still recorded.
func (s *Sanitizer) check(fset *token.FileSet, file *ast.File) *types.Info {
	info := &types.Info{
		Types:     map[ast.Expr]types.TypeAndValue{},
		Defs:      map[*ast.Ident]types.Object{},
		Uses:      map[*ast.Ident]types.Object{},
		Implicits: map[ast.Node]types.Object{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.importer == nil {
		s.importer = importer.ForCompiler(token.NewFileSet(), "source", nil)
	}
	conf := types.Config{
		Importer:    s.importer,
		Error:       func(error) {},
		FakeImportC: true,
	}
	_, _ = conf.Check(file.Name.Name, fset, []*ast.File{file}, info)
	return info
}

// stripVars renders the specs of decl that survive: inert specs verbatim,
// side-effecting ones as typed declarations without values. changed is false
// when every spec is inert.
func stripVars(decl *ast.GenDecl, info *types.Info, names *importNames, text func(from, to token.Pos) string) (specs []string, changed bool) {
	for _, spec := range decl.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		if allInert(vs.Values, info) {
			from, to := vs.Pos(), vs.End()
			if vs.Doc != nil {
				from = vs.Doc.Pos()
			}
			if vs.Comment != nil {
				to = vs.Comment.End()
			}
			specs = append(specs, text(from, to))
			continue
		}
		changed = true
		specs = append(specs, zeroSpecs(vs, info, names, text)...)
	}
	return specs, changed
}

// zeroSpecs declares the names of vs without initialisers. Names whose type
// cannot be written in this file are dropped.
func zeroSpecs(vs *ast.ValueSpec, info *types.Info, names *importNames, text func(from, to token.Pos) string) []string {
	if vs.Type != nil {
		var idents []string
		for _, name := range vs.Names {
			if name.Name != "_" {
				idents = append(idents, name.Name)
			}
		}
		if len(idents) == 0 {
			return nil
		}
		return []string{strings.Join(idents, ", ") + " " + text(vs.Type.Pos(), vs.Type.End())}
	}

	var specs []string
	for _, name := range vs.Names {
		obj := info.Defs[name]
		if name.Name == "_" || obj == nil {
			continue
		}
		expr, ok := names.typeExpr(obj.Type(), obj.Pkg())
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := format.Node(&buf, token.NewFileSet(), expr); err != nil {
			continue
		}
		specs = append(specs, name.Name+" "+buf.String())
	}
	return specs
}

func varDecl(specs []string, grouped bool) string {
	if len(specs) == 1 && !grouped {
		return "var " + specs[0]
	}
	return "var (\n" + strings.Join(specs, "\n") + "\n)"
}

func allInert(values []ast.Expr, info *types.Info) bool {
	for _, value := range values {
		if !inert(value, info) {
			return false
		}
	}
	return true
}

// inert reports whether evaluating expr cannot call into user code, block,
// or spawn work. Builtins such as make and type conversions are allowed;
// function literals are not run by declaring them.
func inert(expr ast.Expr, info *types.Info) bool {
	ok := true
	ast.Inspect(expr, func(n ast.Node) bool {
		if !ok {
			return false
		}
		switch v := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.CallExpr:
			if !inertCall(v, info) {
				ok = false
			}
		case *ast.UnaryExpr:
			if v.Op == token.ARROW {
				ok = false
			}
		}
		return ok
	})
	return ok
}

func inertCall(call *ast.CallExpr, info *types.Info) bool {
	if tv, found := info.Types[call.Fun]; found && tv.IsType() {
		return true
	}
	ident, isIdent := ast.Unparen(call.Fun).(*ast.Ident)
	if !isIdent || !inertBuiltin(ident.Name) {
		return false
	}
	_, builtin := info.Uses[ident].(*types.Builtin)
	return builtin
}

// inertBuiltin reports builtins that never call user code or block.
func inertBuiltin(name string) bool {
	switch name {
	case "make", "new", "len", "cap", "min", "max", "complex", "real", "imag":
		return true
	}
	return false
}

type edit struct {
	from, to int
	text     string
}

func removal(tf *token.File, node ast.Node, doc *ast.CommentGroup) edit {
	from := node.Pos()
	if doc != nil {
		from = doc.Pos()
	}
	return edit{from: tf.Offset(from), to: tf.Offset(node.End())}
}

func apply(src string, edits []edit) string {
	sort.Slice(edits, func(i, j int) bool { return edits[i].from < edits[j].from })
	var b strings.Builder
	last := 0
	for _, e := range edits {
		b.WriteString(src[last:e.from])
		b.WriteString(e.text)
		last = e.to
	}
	b.WriteString(src[last:])
	return b.String()
}

// importNames maps import paths to the names they are visible under in the
// file and records imports needed by generated type expressions.
type importNames struct {
	byPath map[string]string
	taken  map[string]string
	added  map[string]string
}

func newImportNames(file *ast.File, info *types.Info) *importNames {
	names := &importNames{byPath: map[string]string{}, taken: map[string]string{}, added: map[string]string{}}
	for _, spec := range file.Imports {
		importPath := importPathOf(spec)
		name := localName(spec, info)
		if name == "_" || name == "." {
			continue
		}
		names.byPath[importPath] = name
		names.taken[name] = importPath
	}
	return names
}

// qualifier returns the name to select pkg by, importing it if needed.
func (n *importNames) qualifier(pkg *types.Package) (string, bool) {
	importPath := pkg.Path()
	if name, ok := n.byPath[importPath]; ok {
		return name, true
	}
	if pkg.Name() == "main" || isInternal(importPath) {
		return "", false
	}
	name := pkg.Name()
	if other, ok := n.taken[name]; ok && other != importPath {
		return "", false
	}
	n.byPath[importPath] = name
	n.taken[name] = importPath
	n.added[importPath] = name
	return name, true
}

// pruneImports removes imports no declaration refers to and adds the ones
// generated type expressions need.
func pruneImports(fset *token.FileSet, file *ast.File, info *types.Info, added map[string]string) {
	used := map[string]bool{}
	for _, decl := range file.Decls {
		if gen, ok := decl.(*ast.GenDecl); ok && gen.Tok == token.IMPORT {
			continue
		}
		ast.Inspect(decl, func(node ast.Node) bool {
			sel, ok := node.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			ident, ok := sel.X.(*ast.Ident)
			if !ok {
				return true
			}
			switch info.Uses[ident].(type) {
			case *types.PkgName, nil:
				used[ident.Name] = true
			}
			return true
		})
	}

	for _, spec := range append([]*ast.ImportSpec(nil), file.Imports...) {
		name := localName(spec, info)
		if name == "_" || name == "." || used[name] {
			continue
		}
		specName := ""
		if spec.Name != nil {
			specName = spec.Name.Name
		}
		astutil.DeleteNamedImport(fset, file, specName, importPathOf(spec))
	}

	for importPath, name := range added {
		if !used[name] {
			continue
		}
		if name == guessName(importPath) {
			name = ""
		}
		astutil.AddNamedImport(fset, file, name, importPath)
	}
}

func localName(spec *ast.ImportSpec, info *types.Info) string {
	if spec.Name != nil {
		return spec.Name.Name
	}
	if obj, ok := info.Implicits[spec].(*types.PkgName); ok {
		return obj.Imported().Name()
	}
	return guessName(importPathOf(spec))
}

// guessName follows the go command convention for major version suffixes.
func guessName(importPath string) string {
	base := path.Base(importPath)
	if len(base) > 1 && base[0] == 'v' && strings.Trim(base[1:], "0123456789") == "" {
		if dir := path.Dir(importPath); dir != "." {
			base = path.Base(dir)
		}
	}
	return strings.ReplaceAll(strings.TrimPrefix(base, "go-"), "-", "_")
}

func importPathOf(spec *ast.ImportSpec) string {
	return strings.Trim(spec.Path.Value, "\"`")
}

func isInternal(importPath string) bool {
	for _, part := range strings.Split(importPath, "/") {
		if part == "internal" {
			return true
		}
	}
	return false
}

func hasPackageClause(source string) bool {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "", source, parser.PackageClauseOnly)
	return err == nil
}
