package guards

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
	"testing"
)

// TestSlogKeysAreSnakeCase parses every source file and verifies that
// literal slog attribute keys are snake_case.
func TestSlogKeysAreSnakeCase(t *testing.T) {
	snakeCase := regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	repoRoot := findRepoRoot(t)
	var violations []string

	walkSources(t, repoRoot, []string{"internal", "cmd"}, func(rel, content string) {
		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, rel, content, 0)
		if err != nil {
			t.Errorf("parse %s: %v", rel, err)
			return
		}

		ast.Inspect(node, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			method, ok := slogMethod(call)
			if !ok {
				return true
			}
			for _, key := range literalKeys(call, method == "With") {
				if !snakeCase.MatchString(key) {
					pos := fset.Position(call.Pos())
					violations = append(violations,
						rel+":"+itoa(pos.Line)+": slog key \""+key+"\" is not snake_case")
				}
			}
			return true
		})
	})

	if len(violations) > 0 {
		t.Errorf("Found %d slog keys that are not snake_case:\n%s",
			len(violations), strings.Join(violations, "\n"))
	}
}

var slogMethods = map[string]bool{
	"Debug": true,
	"Info":  true,
	"Warn":  true,
	"Error": true,
	"With":  true,
}

// slogMethod reports whether call looks like a method call on a logger:
// an identifier or field named like a logger, or appctx.GetLogger(ctx).
func slogMethod(call *ast.CallExpr) (string, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || !slogMethods[sel.Sel.Name] {
		return "", false
	}

	switch x := sel.X.(type) {
	case *ast.Ident:
		name := strings.ToLower(x.Name)
		if strings.Contains(name, "log") {
			return sel.Sel.Name, true
		}
	case *ast.SelectorExpr:
		if strings.Contains(strings.ToLower(x.Sel.Name), "log") {
			return sel.Sel.Name, true
		}
	case *ast.CallExpr:
		if fn, ok := x.Fun.(*ast.SelectorExpr); ok && fn.Sel.Name == "GetLogger" {
			return sel.Sel.Name, true
		}
	}
	return "", false
}

// literalKeys returns the string literal keys of a key/value argument list.
// Level methods take a message first; With starts with a key.
func literalKeys(call *ast.CallExpr, noMessage bool) []string {
	start := 1
	if noMessage {
		start = 0
	}

	var keys []string
	for i := start; i < len(call.Args); i += 2 {
		lit, ok := call.Args[i].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			continue
		}
		if key := strings.Trim(lit.Value, "\"`"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
