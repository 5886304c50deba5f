// Package main is a command-line tool for working with specs: format
// conversion, modification, analysis, and rendering.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Comcast/uimachine/core"

	"github.com/jsccast/yaml"
)

func main() {

	if len(os.Args) < 2 {
		Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "expand":
		fs, macros := ExpandFlags()
		if err := fs.Parse(os.Args[2:]); err != nil {
			die(err)
		}
		bs := readStdin()
		var x interface{}
		if err := yaml.Unmarshal(bs, &x); err != nil {
			die(err)
		}

		x, err := MacroExpand(x, macros.Driver, macros.Dir)
		if err != nil {
			die(err)
		}

		if bs, err = yaml.Marshal(&x); err != nil {
			die(err)
		}

		fmt.Printf("%s\n", bs)

	case "yamltojson":
		pretty := false

		switch len(os.Args) {
		case 2:
		case 3:
			if os.Args[2] != "-p" {
				die(fmt.Errorf("unsupported args: %v", os.Args[1:]))
			}
			pretty = true
		default:
			die(fmt.Errorf("unsupported args: %v", os.Args[1:]))
		}

		s := readSpec()

		var (
			bs  []byte
			err error
		)
		if pretty {
			bs, err = json.MarshalIndent(&s, "", "  ")
		} else {
			bs, err = json.Marshal(&s)
		}
		if err != nil {
			die(err)
		}
		write(bs)

	case "jsontoyaml":
		var s *core.Spec
		if err := json.Unmarshal(readStdin(), &s); err != nil {
			die(err)
		}
		bs, err := yaml.Marshal(&s)
		if err != nil {
			die(err)
		}
		write(bs)

	case "render":
		if err := Render(os.Args[2:], os.Stdout); err != nil {
			die(err)
		}

	default:

		mod, have := Mods[os.Args[1]]
		if !have {
			fmt.Printf("Unknown subcommand \"%s\"\n", os.Args[1])
			Usage()
			os.Exit(1)
		}

		if err := mod.Flags().Parse(os.Args[2:]); err != nil {
			die(err)
		}

		s := readSpec()

		if err := mod.F(s); err != nil {
			die(err)
		}

		if _, is := mod.(*Analyzer); is {
			return
		}

		bs, err := yaml.Marshal(&s)
		if err != nil {
			die(err)
		}
		write(bs)
	}
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func readStdin() []byte {
	bs, err := io.ReadAll(os.Stdin)
	if err != nil {
		die(err)
	}
	return bs
}

// readSpec parses (but doesn't compile) a spec from stdin.
func readSpec() *core.Spec {
	bs := readStdin()
	if len(bs) == 0 {
		bs = []byte(DefaultSpecYAML)
	}
	s, err := core.ParseSpec(bs)
	if err != nil {
		die(err)
	}
	return s
}

func write(bs []byte) {
	if _, err := os.Stdout.Write(bs); err != nil {
		die(err)
	}
}

func Usage() {
	fmt.Printf("Subcommands:\n\n")
	for _, name := range ModNames() {
		mod := Mods[name]
		mod.Flags().Usage()
		fmt.Println("  " + mod.Doc())
		fmt.Println()
	}
	fmt.Println("Usage of yamltojson:")
	fmt.Printf("  -p    pretty-print\n\n")
	fmt.Printf("Usage of jsontoyaml: (no arguments)\n\n")
	RenderFlags(&RenderOpts{}).Usage()
	fmt.Println()
	fs, _ := ExpandFlags()
	fs.Usage()
}

var DefaultSpecYAML = `initial: start
states:
  start: {}
`
