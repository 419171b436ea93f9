package modeledjs

import "com.github.sebastianobarrera.modeledjs/modeledjs/jsast"

// hoistDeclarations pre-scans a statement list the way spec.md §3.4
// requires: `var` and function declarations are created (as undefined,
// resp. as the closure value) before the block runs, while `let`/
// `const`/class declarations are registered in the TDZ. This mirrors
// the teacher's complete absence of hoisting (its runStmt only ever
// saw flat ES5 var scripts) generalized to the full statement grammar.
func hoistDeclarations(body []Stmt, scope *Scope) {
	for _, s := range body {
		hoistStmt(s, scope, true)
	}
}

// Stmt is a local alias so this file doesn't need to spell jsast.Stmt
// everywhere; kept distinct from jsast.Stmt only in name.
type Stmt = jsast.Stmt

func hoistStmt(s Stmt, scope *Scope, topLevelOfBlock bool) {
	switch st := s.(type) {
	case *jsast.VarDecl:
		for _, d := range st.Decls {
			switch st.Kind {
			case jsast.VarVar:
				hoistPatternVar(d.Target, scope)
			case jsast.VarLet, jsast.VarConst:
				if topLevelOfBlock {
					hoistPatternTDZ(d.Target, scope, declKindOf(st.Kind))
				}
			}
		}
	case *jsast.FunctionDecl:
		if topLevelOfBlock {
			// function declarations are hoisted with their value already
			// bound at block-entry time (spec.md §4.3), unlike var which
			// only reserves the slot.
			scope.env.declareTDZ(scope, DeclFunction, NameStr(st.Function.Name))
		}
	case *jsast.ClassDecl:
		if topLevelOfBlock {
			scope.env.declareTDZ(scope, DeclLet, NameStr(st.Class.Name))
		}
	case *jsast.BlockStmt:
		for _, inner := range st.List {
			hoistStmt(inner, scope, false)
		}
	case *jsast.IfStmt:
		hoistStmt(st.Consequent, scope, false)
		if st.Alternate != nil {
			hoistStmt(st.Alternate, scope, false)
		}
	case *jsast.ForStmt:
		if vd, ok := st.Init.(*jsast.VarDecl); ok && vd.Kind == jsast.VarVar {
			hoistStmt(vd, scope, false)
		}
		hoistStmt(st.Body, scope, false)
	case *jsast.ForInStmt:
		if st.Decl != nil && st.Decl.Kind == jsast.VarVar {
			hoistStmt(st.Decl, scope, false)
		}
		hoistStmt(st.Body, scope, false)
	case *jsast.ForOfStmt:
		if st.Decl != nil && st.Decl.Kind == jsast.VarVar {
			hoistStmt(st.Decl, scope, false)
		}
		hoistStmt(st.Body, scope, false)
	case *jsast.WhileStmt:
		hoistStmt(st.Body, scope, false)
	case *jsast.DoWhileStmt:
		hoistStmt(st.Body, scope, false)
	case *jsast.TryStmt:
		hoistStmt(st.Body, scope, false)
		if st.Catch != nil {
			hoistStmt(st.Catch.Body, scope, false)
		}
		if st.Finally != nil {
			hoistStmt(st.Finally, scope, false)
		}
	case *jsast.SwitchStmt:
		for _, c := range st.Cases {
			for _, inner := range c.Consequent {
				hoistStmt(inner, scope, false)
			}
		}
	case *jsast.LabeledStmt:
		hoistStmt(st.Body, scope, topLevelOfBlock)
	case *jsast.WithStmt:
		hoistStmt(st.Body, scope, false)
	}
}

func declKindOf(k jsast.VarKind) DeclKind {
	if k == jsast.VarConst {
		return DeclConst
	}
	return DeclLet
}

func hoistPatternVar(p jsast.Pattern, scope *Scope) {
	target := nearestVariableScope(scope)
	for _, name := range patternNames(p) {
		target.env.defineVar(target, DeclVar, NameStr(name), JSUndefined{})
	}
}

func hoistPatternTDZ(p jsast.Pattern, scope *Scope, kind DeclKind) {
	for _, name := range patternNames(p) {
		scope.env.declareTDZ(scope, kind, NameStr(name))
	}
}

// patternNames flattens every identifier bound by a (possibly nested,
// destructuring) pattern.
func patternNames(p jsast.Pattern) []string {
	var out []string
	var walk func(jsast.Pattern)
	walk = func(p jsast.Pattern) {
		switch t := p.(type) {
		case *jsast.Identifier:
			out = append(out, t.Name)
		case *jsast.AssignPattern:
			walk(t.Target)
		case *jsast.RestElement:
			walk(t.Target)
		case *jsast.ArrayPattern:
			for _, el := range t.Elements {
				if el.Target != nil {
					walk(el.Target)
				}
			}
		case *jsast.ObjectPattern:
			for _, prop := range t.Properties {
				walk(prop.Value)
			}
			if t.Rest != "" {
				out = append(out, t.Rest)
			}
		}
	}
	walk(p)
	return out
}

// hasUseStrict reports whether body's directive prologue (its leading
// string-literal expression statements) contains "use strict", ported
// from the teacher.
func hasUseStrict(body []Stmt) bool {
	for _, s := range body {
		es, ok := s.(*jsast.ExpressionStmt)
		if !ok {
			return false
		}
		str, ok := es.Expression.(*jsast.StringLiteral)
		if !ok {
			return false
		}
		if str.Value == "use strict" {
			return true
		}
	}
	return false
}
