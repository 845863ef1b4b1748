// Package expr builds Earth Engine expression graphs and encodes them in the
// REST API's {result, values} form.
//
// Typed wrappers (Image, ImageCollection, Geometry) only construct nodes; no
// computation happens locally.
package expr

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

type kind uint8

const (
	kindInvocation kind = iota
	kindConstant
	kindArgRef
	kindFuncDef
)

// Node is one vertex of an expression graph. Nodes are immutable once built.
type Node struct {
	kind   kind
	fn     string
	args   map[string]*Node
	value  any
	name   string
	params []string
	body   *Node
}

// Expr is anything that can be encoded.
type Expr interface {
	Node() *Node
}

func (n *Node) Node() *Node { return n }

// Invoke calls a platform algorithm by name.
func Invoke(fn string, args map[string]*Node) *Node {
	return &Node{kind: kindInvocation, fn: fn, args: args}
}

// Const wraps any JSON-encodable value.
func Const(v any) *Node {
	return &Node{kind: kindConstant, value: v}
}

func ArgRef(name string) *Node {
	return &Node{kind: kindArgRef, name: name}
}

func FuncDef(params []string, body *Node) *Node {
	return &Node{kind: kindFuncDef, params: params, body: body}
}

// FunctionName reports the invoked algorithm, or "" for other node kinds.
func (n *Node) FunctionName() string {
	if n.kind != kindInvocation {
		return ""
	}
	return n.fn
}

// Arg returns the named argument of an invocation.
func (n *Node) Arg(name string) *Node {
	if n.kind != kindInvocation {
		return nil
	}
	return n.args[name]
}

// Expression is the encoded graph. Values holds shared sub-expressions by id.
type Expression struct {
	Result string         `json:"result"`
	Values map[string]any `json:"values"`
}

// Bytes returns the canonical JSON encoding; map keys are sorted so equal
// graphs produce equal bytes.
func (e *Expression) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

type encoder struct {
	values map[string]any
	byKey  map[string]string
	byPtr  map[*Node]any
	next   int
}

// Encode flattens the graph rooted at x. Identical sub-expressions, whether
// the same *Node or structurally equal ones, are stored once and referenced
// by id.
func Encode(x Expr) (*Expression, error) {
	e := &encoder{
		values: make(map[string]any),
		byKey:  make(map[string]string),
		byPtr:  make(map[*Node]any),
	}
	id, err := e.id(x.Node())
	if err != nil {
		return nil, err
	}
	return &Expression{Result: id, Values: e.values}, nil
}

// MustEncode panics on encoding errors; graphs built from this package's
// constructors only contain encodable constants.
func MustEncode(x Expr) *Expression {
	out, err := Encode(x)
	if err != nil {
		panic(err)
	}
	return out
}

// ref returns the inline form for constants and argument references, and a
// valueReference for everything else.
func (e *encoder) ref(n *Node) (any, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node")
	}
	if v, ok := e.byPtr[n]; ok {
		return v, nil
	}
	var out any
	switch n.kind {
	case kindConstant:
		out = map[string]any{"constantValue": n.value}
	case kindArgRef:
		out = map[string]any{"argumentReference": n.name}
	default:
		id, err := e.store(n)
		if err != nil {
			return nil, err
		}
		out = map[string]any{"valueReference": id}
	}
	e.byPtr[n] = out
	return out, nil
}

// id always returns a values id, storing inline kinds as their own entry.
func (e *encoder) id(n *Node) (string, error) {
	if n == nil {
		return "", fmt.Errorf("nil node")
	}
	if n.kind == kindInvocation || n.kind == kindFuncDef {
		return e.store(n)
	}
	v, err := e.ref(n)
	if err != nil {
		return "", err
	}
	return e.intern(v)
}

func (e *encoder) store(n *Node) (string, error) {
	var v any
	switch n.kind {
	case kindInvocation:
		names := make([]string, 0, len(n.args))
		for k := range n.args {
			names = append(names, k)
		}
		sort.Strings(names)
		args := make(map[string]any, len(names))
		for _, k := range names {
			a, err := e.ref(n.args[k])
			if err != nil {
				return "", fmt.Errorf("%s.%s: %w", n.fn, k, err)
			}
			args[k] = a
		}
		v = map[string]any{"functionInvocationValue": map[string]any{
			"functionName": n.fn,
			"arguments":    args,
		}}
	case kindFuncDef:
		body, err := e.id(n.body)
		if err != nil {
			return "", fmt.Errorf("function body: %w", err)
		}
		v = map[string]any{"functionDefinitionValue": map[string]any{
			"argumentNames": n.params,
			"body":          body,
		}}
	default:
		return "", fmt.Errorf("node kind %d cannot be stored", n.kind)
	}
	return e.intern(v)
}

func (e *encoder) intern(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	key := string(b)
	if id, ok := e.byKey[key]; ok {
		return id, nil
	}
	id := strconv.Itoa(e.next)
	e.next++
	e.byKey[key] = id
	e.values[id] = v
	return id, nil
}
