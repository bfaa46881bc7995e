package matching

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/mockrelay/pkg/exchange"
)

var programCache sync.Map // expression -> *vm.Program

// conditionEnv is the expression environment. Header and cookie names are
// lower-cased so expressions can index them case-insensitively.
type conditionEnv struct {
	Request conditionRequest `expr:"request"`
}

type conditionRequest struct {
	Method  string              `expr:"method"`
	Path    string              `expr:"path"`
	Query   map[string][]string `expr:"query"`
	Headers map[string]string   `expr:"headers"`
	Cookies map[string]string   `expr:"cookies"`
	Body    string              `expr:"body"`
}

func compileCondition(expression string) (*vm.Program, error) {
	if p, ok := programCache.Load(expression); ok {
		return p.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.Env(conditionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	programCache.Store(expression, program)
	return program, nil
}

// MatchCondition evaluates an expr-lang boolean expression against req.
// Compile or runtime errors count as no match.
func MatchCondition(expression string, req *exchange.Request) bool {
	program, err := compileCondition(expression)
	if err != nil {
		return false
	}

	env := conditionEnv{Request: conditionRequest{
		Method:  req.Method,
		Path:    req.Path,
		Query:   req.Query(),
		Headers: make(map[string]string, len(req.Header)),
		Cookies: make(map[string]string),
		Body:    string(req.Body),
	}}
	for name, values := range req.Header {
		env.Request.Headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	for _, c := range req.Cookies() {
		key := strings.ToLower(c.Name)
		if _, seen := env.Request.Cookies[key]; !seen {
			env.Request.Cookies[key] = c.Value
		}
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// ValidateCondition reports whether expression compiles to a boolean.
func ValidateCondition(expression string) error {
	_, err := compileCondition(expression)
	return err
}
