package directive

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"
)

// Template is a parsed directive template. Rendering resolves {{.key}}
// references against the pipeline state and fails on any undefined key, so
// broken configurations surface as errors instead of half-rendered prompts.
type Template struct {
	name string
	tpl  *template.Template
	refs []string
}

// ParseTemplate parses a template body. Syntax errors are configuration
// errors; they never wait until a submission arrives.
func ParseTemplate(name, text string) (*Template, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: directive %q: %v", ErrConfigInvalid, name, err)
	}
	return &Template{
		name: name,
		tpl:  tpl,
		refs: collectRefs(tpl.Root),
	}, nil
}

// Refs returns the state keys the template references, sorted.
func (t *Template) Refs() []string {
	refs := make([]string, len(t.refs))
	copy(refs, t.refs)
	return refs
}

// Render executes the template against a state snapshot.
func (t *Template) Render(state map[string]string) (string, error) {
	var sb strings.Builder
	if err := t.tpl.Execute(&sb, state); err != nil {
		return "", fmt.Errorf("%w: directive %q: %v", ErrRender, t.name, err)
	}
	return sb.String(), nil
}

// collectRefs walks the parse tree and returns the top-level state keys the
// template references. Only the first identifier of a field chain matters:
// state values are flat strings, so anything deeper fails at render time.
func collectRefs(root parse.Node) []string {
	seen := make(map[string]bool)

	var walkNode func(parse.Node)
	var walkPipe func(*parse.PipeNode)

	walkPipe = func(pipe *parse.PipeNode) {
		if pipe == nil {
			return
		}
		for _, cmd := range pipe.Cmds {
			for _, arg := range cmd.Args {
				switch arg := arg.(type) {
				case *parse.FieldNode:
					if len(arg.Ident) > 0 {
						seen[arg.Ident[0]] = true
					}
				case *parse.PipeNode:
					walkPipe(arg)
				}
			}
		}
	}

	walkNode = func(n parse.Node) {
		switch n := n.(type) {
		case *parse.ListNode:
			if n == nil {
				return
			}
			for _, child := range n.Nodes {
				walkNode(child)
			}
		case *parse.ActionNode:
			walkPipe(n.Pipe)
		case *parse.IfNode:
			walkPipe(n.Pipe)
			walkNode(n.List)
			walkNode(n.ElseList)
		case *parse.RangeNode:
			walkPipe(n.Pipe)
			walkNode(n.List)
			walkNode(n.ElseList)
		case *parse.WithNode:
			walkPipe(n.Pipe)
			walkNode(n.List)
			walkNode(n.ElseList)
		case *parse.TemplateNode:
			walkPipe(n.Pipe)
		}
	}

	walkNode(root)

	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
