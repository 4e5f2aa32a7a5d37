// Package graph exports registry contents as the node/link data consumed by
// force-directed visualizations.
package graph

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"arcanea/internal/parser"
	"arcanea/internal/runtime"
)

// Node groups.
const (
	GroupNative    = 1
	GroupSpell     = 2
	GroupArchetype = 3
	GroupModule    = 4
)

type Node struct {
	ID          string `json:"id"`
	Group       int    `json:"group"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Link weights: 1 for calls and declarations, 2 for member types.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int    `json:"value"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// declarer is implemented by modules that know what they declared.
type declarer interface {
	Declarations() []string
}

type builder struct {
	graph *Graph
	ids   map[string]string // kind:name -> node id
	links map[[2]string]int
}

// Build snapshots reg into a graph. Spells link to the spells, natives and
// archetypes they call; archetypes link to their member types; script
// modules link to what they declared.
func Build(reg *runtime.Registry) *Graph {
	b := &builder{
		graph: &Graph{Nodes: []Node{}, Links: []Link{}},
		ids:   make(map[string]string),
		links: make(map[[2]string]int),
	}
	cat := reg.Catalog()

	for _, name := range cat.Types {
		b.addNode("type", name, GroupNative, "native type")
	}
	for _, name := range cat.Functions {
		b.addNode("function", name, GroupNative, "native function")
	}
	for _, name := range cat.Archetypes {
		if a, ok := reg.GetArchetype(name); ok {
			b.addNode("archetype", name, GroupArchetype, describeArchetype(a))
		}
	}
	for _, name := range cat.Spells {
		if s, ok := reg.GetSpell(name); ok {
			b.addNode("spell", name, GroupSpell, describeSpell(s))
		}
	}
	for _, name := range cat.Modules {
		b.addNode("module", name, GroupModule, "module")
	}

	for _, name := range cat.Archetypes {
		if a, ok := reg.GetArchetype(name); ok {
			b.archetypeLinks(a)
		}
	}
	for _, name := range cat.Spells {
		if s, ok := reg.GetSpell(name); ok {
			b.spellLinks(s)
		}
	}
	for _, name := range cat.Modules {
		if m, ok := reg.GetModule(name); ok {
			b.moduleLinks(name, m)
		}
	}

	b.flushLinks()
	return b.graph
}

// addNode keeps plain names as ids; a name already taken by another kind
// is qualified with its kind.
func (b *builder) addNode(kind, name string, group int, description string) {
	id := name
	for _, existing := range b.ids {
		if existing == id {
			id = kind + ":" + name
			break
		}
	}
	b.ids[kind+":"+name] = id
	b.graph.Nodes = append(b.graph.Nodes, Node{ID: id, Group: group, Type: kind, Description: description})
}

func (b *builder) link(source, target string, value int) {
	if source == "" || target == "" {
		return
	}
	b.links[[2]string{source, target}] += value
}

// resolve finds the node a bare name refers to, with the same precedence
// the evaluator uses.
func (b *builder) resolve(name string) string {
	for _, kind := range []string{"spell", "archetype", "function"} {
		if id, ok := b.ids[kind+":"+name]; ok {
			return id
		}
	}
	return ""
}

func (b *builder) spellLinks(s *runtime.Spell) {
	source := b.ids["spell:"+s.Name]
	local := map[string]bool{}
	for _, p := range s.Decl.Params {
		local[p.Name] = true
	}

	for _, stmt := range s.Decl.Body {
		parser.Inspect(stmt, func(n parser.Node) bool {
			switch node := n.(type) {
			case *parser.SpellDecl:
				local[node.Name] = true
			case *parser.LetStmt:
				local[node.Name] = true
			case *parser.CallExpr:
				if ident, ok := node.Callee.(*parser.Identifier); ok && !local[ident.Name] {
					b.link(source, b.resolve(ident.Name), 1)
				}
			}
			return true
		})
	}
}

func (b *builder) archetypeLinks(a *runtime.Archetype) {
	target := b.ids["archetype:"+a.Name]
	for _, m := range a.Decl.Members {
		if m.Type == "" {
			continue
		}
		if id, ok := b.ids["type:"+m.Type]; ok {
			b.link(id, target, 2)
		} else if id, ok := b.ids["archetype:"+m.Type]; ok {
			b.link(id, target, 2)
		}
	}
}

func (b *builder) moduleLinks(name string, m runtime.Module) {
	d, ok := m.(declarer)
	if !ok {
		return
	}
	source := b.ids["module:"+name]
	for _, decl := range d.Declarations() {
		b.link(source, b.resolve(decl), 1)
	}
}

func (b *builder) flushLinks() {
	for key, value := range b.links {
		b.graph.Links = append(b.graph.Links, Link{Source: key[0], Target: key[1], Value: value})
	}
	sort.Slice(b.graph.Links, func(i, j int) bool {
		li, lj := b.graph.Links[i], b.graph.Links[j]
		if li.Source != lj.Source {
			return li.Source < lj.Source
		}
		return li.Target < lj.Target
	})
}

func describeSpell(s *runtime.Spell) string {
	return s.Name + "(" + strings.Join(s.Decl.ParamNames(), ", ") + ")"
}

func describeArchetype(a *runtime.Archetype) string {
	if len(a.Decl.Members) == 0 {
		return a.Name + " {}"
	}
	members := make([]string, len(a.Decl.Members))
	for i, m := range a.Decl.Members {
		members[i] = m.Name
		if m.Type != "" {
			members[i] += ": " + m.Type
		}
	}
	return a.Name + " { " + strings.Join(members, ", ") + " }"
}

// Write encodes g as indented JSON.
func (g *Graph) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
