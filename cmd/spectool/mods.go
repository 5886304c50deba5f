package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/tools"

	"github.com/jsccast/yaml"
)

// Mods are the subcommands that read a spec from stdin, change it, and
// write it to stdout.
var Mods = map[string]Mod{
	"addGlobalTransition": &AddGlobalTransitionMod{},
	"addFinalNode":        &AddFinalNodeMod{},
	"addTag":              &AddTagMod{},
	"analyze":             &Analyzer{},
}

func ModNames() []string {
	acc := make([]string, 0, len(Mods))
	for name := range Mods {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

var (
	NoTargetNode = errors.New("no target node")
	NodeExists   = errors.New("node exists")
)

type Mod interface {
	F(*core.Spec) error
	Doc() string
	Flags() *flag.FlagSet
}

func names(s string) core.Names {
	var acc core.Names
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			acc = append(acc, name)
		}
	}
	return acc
}

// AddGlobalTransition appends a transition for the event to the
// spec's global handlers.
//
// The Spec's Doc is updated to note that this processing has occurred.
func AddGlobalTransition(s *core.Spec, event, target string, guard string, actions core.Names) error {
	if target != "" {
		if _, have := s.Nodes[target]; !have {
			return NoTargetNode
		}
	}
	t := &core.Transition{
		Target:  target,
		Actions: actions,
	}
	if guard != "" {
		t.Guard = core.Named(guard)
	}
	if s.On == nil {
		s.On = make(map[string]core.Transitions)
	}
	s.On[event] = append(s.On[event], t)

	s.Doc = s.Doc + fmt.Sprintf(`

This spec has been processed by AddGlobalTransition with event "%s".
`, event)

	return nil
}

type AddGlobalTransitionMod struct {
	Event   string
	Target  string
	Guard   string
	Actions string
}

func (m *AddGlobalTransitionMod) Doc() string {
	return `
Adds a global transition for an event.  The transition is appended, so
earlier transitions for the same event take precedence.
`
}

func (m *AddGlobalTransitionMod) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("addGlobalTransition", flag.PanicOnError)

	flags.StringVar(&m.Event, "e", "CANCEL", "event type")
	flags.StringVar(&m.Target, "t", "cancel", "target")
	flags.StringVar(&m.Guard, "g", "", "optional guard name")
	flags.StringVar(&m.Actions, "a", "", "comma-separated action names")

	return flags
}

func (m *AddGlobalTransitionMod) F(s *core.Spec) error {
	return AddGlobalTransition(s, m.Event, m.Target, m.Guard, names(m.Actions))
}

// FinalNodeYAML is the node that AddFinalNode adds.
var FinalNodeYAML = `
doc: The machine is finished.
type: final
tags: [done]
`

// AddFinalNode adds a final node as given by FinalNodeYAML with the
// given entry actions.
func AddFinalNode(s *core.Spec, name string, entry core.Names) error {
	if _, have := s.Nodes[name]; have {
		return NodeExists
	}

	var n core.Node
	if err := yaml.Unmarshal([]byte(FinalNodeYAML), &n); err != nil {
		return err
	}
	n.Entry = entry

	if s.Nodes == nil {
		s.Nodes = make(map[string]*core.Node, 32)
	}

	s.Nodes[name] = &n

	return nil
}

type AddFinalNodeMod struct {
	Name  string
	Entry string
}

func (m *AddFinalNodeMod) Doc() string {
	return `
Adds a final node tagged "done" with optional entry actions.  Combine with
addGlobalTransition to make a machine cancelable.
`
}

func (m *AddFinalNodeMod) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("addFinalNode", flag.PanicOnError)
	flags.StringVar(&m.Name, "n", "cancel", "node name")
	flags.StringVar(&m.Entry, "a", "", "comma-separated entry action names")
	return flags
}

func (m *AddFinalNodeMod) F(s *core.Spec) error {
	return AddFinalNode(s, m.Name, names(m.Entry))
}

// AddTag adds the tag to the given nodes (or to every node).
func AddTag(s *core.Spec, tag string, nodes core.Names) error {
	if len(nodes) == 0 {
		nodes = s.NodeNames()
	}
	for _, name := range nodes {
		n, have := s.Nodes[name]
		if !have {
			return fmt.Errorf("no node '%s'", name)
		}
		if n == nil {
			n = &core.Node{}
			s.Nodes[name] = n
		}
		if !n.Tags.Has(tag) {
			n.Tags = append(n.Tags, tag)
		}
	}
	return nil
}

type AddTagMod struct {
	Tag   string
	Nodes string
}

func (m *AddTagMod) Doc() string {
	return "Adds a tag to the given nodes (default: all nodes)."
}

func (m *AddTagMod) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("addTag", flag.PanicOnError)
	flags.StringVar(&m.Tag, "t", "", "tag")
	flags.StringVar(&m.Nodes, "n", "", "comma-separated node names")
	return flags
}

func (m *AddTagMod) F(s *core.Spec) error {
	if m.Tag == "" {
		return errors.New("need a tag (-t)")
	}
	return AddTag(s, m.Tag, names(m.Nodes))
}

type Analyzer struct {
}

func (m *Analyzer) F(s *core.Spec) error {
	a, err := tools.Analyze(s)
	if err != nil {
		return err
	}
	bs, err := yaml.Marshal(&a)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s\n", bs)

	return nil
}

func (m *Analyzer) Doc() string {
	return "Reports unreachable nodes, missing targets, shadowed transitions, and referenced names."
}

func (m *Analyzer) Flags() *flag.FlagSet {
	return flag.NewFlagSet("analyze", flag.PanicOnError)
}
