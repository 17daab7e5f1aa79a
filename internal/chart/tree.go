// Package chart models a tenant's chart of accounts as a tree linked by
// parent codes. Every traversal is iterative and tracks visited nodes, so
// malformed or cyclic data cannot recurse without bound.
package chart

import (
	"fmt"
	"sort"
	"strings"

	"ledger-recon/internal/domain"
)

// CycleError reports parent links that loop back on themselves.
type CycleError struct {
	Codes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("account hierarchy cycle: %s", strings.Join(e.Codes, " -> "))
}

type node struct {
	account  domain.Account
	parent   *node
	children []*node
}

// Tree is an immutable account hierarchy.
type Tree struct {
	nodes map[string]*node
	roots []*node
}

// New links accounts by ParentCode. Accounts whose parent is missing become
// roots. Children are ordered by code.
func New(accounts []domain.Account) *Tree {
	t := &Tree{nodes: make(map[string]*node, len(accounts))}
	for _, a := range accounts {
		if _, dup := t.nodes[a.Code]; dup {
			continue
		}
		t.nodes[a.Code] = &node{account: a}
	}

	for _, n := range t.nodes {
		parentCode := n.account.ParentCode
		if parentCode == "" || parentCode == n.account.Code {
			t.roots = append(t.roots, n)
			continue
		}
		p, ok := t.nodes[parentCode]
		if !ok {
			t.roots = append(t.roots, n)
			continue
		}
		n.parent = p
		p.children = append(p.children, n)
	}

	byCode := func(ns []*node) {
		sort.Slice(ns, func(i, j int) bool { return ns[i].account.Code < ns[j].account.Code })
	}
	byCode(t.roots)
	for _, n := range t.nodes {
		byCode(n.children)
	}
	return t
}

// Len is the number of accounts in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Get returns the account with the given code.
func (t *Tree) Get(code string) (domain.Account, bool) {
	n, ok := t.nodes[code]
	if !ok {
		return domain.Account{}, false
	}
	return n.account, true
}

// Children returns the direct children of code.
func (t *Tree) Children(code string) []domain.Account {
	n, ok := t.nodes[code]
	if !ok {
		return nil
	}
	out := make([]domain.Account, len(n.children))
	for i, c := range n.children {
		out[i] = c.account
	}
	return out
}

// Ancestors returns the parents of code from nearest to root.
func (t *Tree) Ancestors(code string) ([]domain.Account, error) {
	n, ok := t.nodes[code]
	if !ok {
		return nil, domain.NewNotFoundError("account not found: " + code)
	}

	seen := map[string]bool{code: true}
	path := []string{code}
	var out []domain.Account
	for p := n.parent; p != nil; p = p.parent {
		path = append(path, p.account.Code)
		if seen[p.account.Code] {
			return nil, &CycleError{Codes: path}
		}
		seen[p.account.Code] = true
		out = append(out, p.account)
	}
	return out, nil
}

// Path renders the code's position as "root > ... > code".
func (t *Tree) Path(code string) (string, error) {
	ancestors, err := t.Ancestors(code)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		parts = append(parts, ancestors[i].Code)
	}
	parts = append(parts, code)
	return strings.Join(parts, " > "), nil
}

// Descendants returns every account below code in depth-first order.
func (t *Tree) Descendants(code string) []domain.Account {
	n, ok := t.nodes[code]
	if !ok {
		return nil
	}
	var out []domain.Account
	t.walk([]*node{n}, func(a domain.Account, depth int) {
		if depth > 0 {
			out = append(out, a)
		}
	})
	return out
}

// Walk visits every account reachable from a root depth-first, children in
// code order, passing the depth of each node.
func (t *Tree) Walk(fn func(a domain.Account, depth int)) {
	t.walk(t.roots, fn)
}

type frame struct {
	n     *node
	depth int
}

func (t *Tree) walk(start []*node, fn func(a domain.Account, depth int)) {
	stack := make([]frame, 0, len(start))
	for i := len(start) - 1; i >= 0; i-- {
		stack = append(stack, frame{n: start[i]})
	}
	visited := make(map[*node]bool, len(t.nodes))

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.n] {
			continue
		}
		visited[f.n] = true
		fn(f.n.account, f.depth)

		for i := len(f.n.children) - 1; i >= 0; i-- {
			stack = append(stack, frame{n: f.n.children[i], depth: f.depth + 1})
		}
	}
}

// Cycles returns one CycleError per loop of parent links. Accounts on a
// loop are never reachable from a root, so Walk skips them.
func (t *Tree) Cycles() []*CycleError {
	codes := make([]string, 0, len(t.nodes))
	for c := range t.nodes {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	state := make(map[*node]int, len(t.nodes)) // 0 new, 1 on current chain, 2 done
	var cycles []*CycleError
	for _, c := range codes {
		start := t.nodes[c]
		if state[start] != 0 {
			continue
		}
		var chain []*node
		n := start
		for n != nil && state[n] == 0 {
			state[n] = 1
			chain = append(chain, n)
			n = n.parent
		}
		if n != nil && state[n] == 1 {
			var loop []string
			idx := 0
			for i, m := range chain {
				if m == n {
					idx = i
					break
				}
			}
			for _, m := range chain[idx:] {
				loop = append(loop, m.account.Code)
			}
			loop = append(loop, n.account.Code)
			cycles = append(cycles, &CycleError{Codes: loop})
		}
		for _, m := range chain {
			state[m] = 2
		}
	}
	return cycles
}

// CheckNew validates an account about to be added: the code must be free,
// the parent must exist and the parent chain must be acyclic.
func (t *Tree) CheckNew(spec domain.NewAccountSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if _, exists := t.nodes[spec.Code]; exists {
		return domain.NewAlreadyExistsError("account code already exists: " + spec.Code)
	}
	if spec.ParentCode == "" {
		return nil
	}
	if spec.ParentCode == spec.Code {
		return &CycleError{Codes: []string{spec.Code, spec.Code}}
	}
	parent, ok := t.nodes[spec.ParentCode]
	if !ok {
		return domain.NewValidationError("parent account not found: " + spec.ParentCode)
	}
	if !parent.account.IsActive {
		return domain.NewValidationError("parent account is inactive: " + spec.ParentCode)
	}
	if _, err := t.Ancestors(spec.ParentCode); err != nil {
		return err
	}
	return nil
}
