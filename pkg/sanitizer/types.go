package sanitizer

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
)

// typeExpr writes t as a type expression valid inside the file of package
// local. It fails for types the file cannot name: untyped or invalid types,
// function-local or unexported foreign types, type parameters, and
// packages that cannot be imported from here.
func (n *importNames) typeExpr(t types.Type, local *types.Package) (ast.Expr, bool) {
	switch t := t.(type) {
	case *types.Basic:
		if t.Kind() == types.Invalid || t.Info()&types.IsUntyped != 0 {
			return nil, false
		}
		if t.Kind() == types.UnsafePointer {
			name, ok := n.qualifier(types.Unsafe)
			if !ok {
				return nil, false
			}
			return &ast.SelectorExpr{X: ast.NewIdent(name), Sel: ast.NewIdent("Pointer")}, true
		}
		return ast.NewIdent(t.Name()), true

	case *types.Alias:
		return n.namedExpr(t.Obj(), t.TypeArgs(), local)

	case *types.Named:
		return n.namedExpr(t.Obj(), t.TypeArgs(), local)

	case *types.Pointer:
		elem, ok := n.typeExpr(t.Elem(), local)
		if !ok {
			return nil, false
		}
		return &ast.StarExpr{X: elem}, true

	case *types.Slice:
		elem, ok := n.typeExpr(t.Elem(), local)
		if !ok {
			return nil, false
		}
		return &ast.ArrayType{Elt: elem}, true

	case *types.Array:
		elem, ok := n.typeExpr(t.Elem(), local)
		if !ok {
			return nil, false
		}
		length := &ast.BasicLit{Kind: token.INT, Value: strconv.FormatInt(t.Len(), 10)}
		return &ast.ArrayType{Len: length, Elt: elem}, true

	case *types.Map:
		key, ok := n.typeExpr(t.Key(), local)
		if !ok {
			return nil, false
		}
		value, ok := n.typeExpr(t.Elem(), local)
		if !ok {
			return nil, false
		}
		return &ast.MapType{Key: key, Value: value}, true

	case *types.Chan:
		elem, ok := n.typeExpr(t.Elem(), local)
		if !ok {
			return nil, false
		}
		dir := ast.SEND | ast.RECV
		switch t.Dir() {
		case types.SendOnly:
			dir = ast.SEND
		case types.RecvOnly:
			dir = ast.RECV
		}
		return &ast.ChanType{Dir: dir, Value: elem}, true

	case *types.Signature:
		if t.TypeParams().Len() > 0 {
			return nil, false
		}
		params, ok := n.fieldList(t.Params(), t.Variadic(), local)
		if !ok {
			return nil, false
		}
		results, ok := n.fieldList(t.Results(), false, local)
		if !ok {
			return nil, false
		}
		return &ast.FuncType{Params: params, Results: results}, true

	case *types.Struct:
		fields := &ast.FieldList{}
		for i := 0; i < t.NumFields(); i++ {
			field := t.Field(i)
			if !field.Exported() && field.Pkg() != local {
				return nil, false
			}
			typ, ok := n.typeExpr(field.Type(), local)
			if !ok {
				return nil, false
			}
			out := &ast.Field{Type: typ}
			if !field.Embedded() {
				out.Names = []*ast.Ident{ast.NewIdent(field.Name())}
			}
			if tag := t.Tag(i); tag != "" {
				out.Tag = &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(tag)}
			}
			fields.List = append(fields.List, out)
		}
		return &ast.StructType{Fields: fields}, true

	case *types.Interface:
		if !t.Empty() {
			return nil, false
		}
		return &ast.InterfaceType{Methods: &ast.FieldList{}}, true
	}
	return nil, false
}

func (n *importNames) namedExpr(obj *types.TypeName, args *types.TypeList, local *types.Package) (ast.Expr, bool) {
	var base ast.Expr
	switch pkg := obj.Pkg(); {
	case pkg == nil:
		base = ast.NewIdent(obj.Name())
	case obj.Parent() != pkg.Scope():
		return nil, false
	case pkg == local:
		base = ast.NewIdent(obj.Name())
	default:
		if !obj.Exported() {
			return nil, false
		}
		name, ok := n.qualifier(pkg)
		if !ok {
			return nil, false
		}
		base = &ast.SelectorExpr{X: ast.NewIdent(name), Sel: ast.NewIdent(obj.Name())}
	}

	if args.Len() == 0 {
		return base, true
	}
	indices := make([]ast.Expr, 0, args.Len())
	for i := 0; i < args.Len(); i++ {
		arg, ok := n.typeExpr(args.At(i), local)
		if !ok {
			return nil, false
		}
		indices = append(indices, arg)
	}
	if len(indices) == 1 {
		return &ast.IndexExpr{X: base, Index: indices[0]}, true
	}
	return &ast.IndexListExpr{X: base, Indices: indices}, true
}

func (n *importNames) fieldList(tuple *types.Tuple, variadic bool, local *types.Package) (*ast.FieldList, bool) {
	list := &ast.FieldList{}
	for i := 0; i < tuple.Len(); i++ {
		v := tuple.At(i)
		var typ ast.Expr
		if variadic && i == tuple.Len()-1 {
			slice, ok := v.Type().(*types.Slice)
			if !ok {
				return nil, false
			}
			elem, ok := n.typeExpr(slice.Elem(), local)
			if !ok {
				return nil, false
			}
			typ = &ast.Ellipsis{Elt: elem}
		} else {
			var ok bool
			if typ, ok = n.typeExpr(v.Type(), local); !ok {
				return nil, false
			}
		}
		list.List = append(list.List, &ast.Field{Type: typ})
	}
	return list, true
}
