package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/tools"

	"github.com/fsnotify/fsnotify"
)

// RenderOpts are the options for the render subcommand.
type RenderOpts struct {
	Format  string
	Input   string
	Output  string
	Watch   bool
	CSS     string
	Graph   bool
	Actions bool
}

func RenderFlags(o *RenderOpts) *flag.FlagSet {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.StringVar(&o.Input, "i", "", "spec filename (default stdin)")
	fs.StringVar(&o.Output, "o", "", "output filename (default stdout)")
	fs.BoolVar(&o.Watch, "watch", false, "re-render when the input file changes")
	fs.StringVar(&o.CSS, "css", "", "comma-separated CSS URLs for html")
	fs.BoolVar(&o.Graph, "graph", true, "include a Mermaid graph in html")
	fs.BoolVar(&o.Actions, "actions", false, "show actions in mermaid")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage of render (dot|mermaid|html):\n")
		fs.PrintDefaults()
	}
	return fs
}

// Render handles "render FORMAT [flags]".
func Render(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errors.New("need a format: dot, mermaid, or html")
	}
	o := &RenderOpts{
		Format: args[0],
	}
	if err := RenderFlags(o).Parse(args[1:]); err != nil {
		return err
	}

	if o.Watch {
		if o.Input == "" {
			return errors.New("-watch needs an input file (-i)")
		}
		return watch(o, stdout)
	}
	return renderOnce(o, stdout)
}

func renderOnce(o *RenderOpts, stdout io.Writer) error {
	var (
		bs  []byte
		err error
	)
	if o.Input == "" {
		bs, err = io.ReadAll(os.Stdin)
	} else {
		bs, err = os.ReadFile(o.Input)
	}
	if err != nil {
		return err
	}
	spec, err := core.ParseSpec(bs)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err = RenderSpec(spec, o, &buf); err != nil {
		return err
	}

	if o.Output == "" {
		_, err = stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(o.Output, buf.Bytes(), 0644)
}

// RenderSpec writes the spec in the format the options name.
func RenderSpec(spec *core.Spec, o *RenderOpts, w io.Writer) error {
	switch o.Format {
	case "dot":
		return tools.Dot(spec, w, "", "")
	case "mermaid":
		opts := &tools.MermaidOpts{
			ShowGuards:  true,
			ShowActions: o.Actions,
			FinalFill:   "#bcf2db",
		}
		return tools.Mermaid(spec, w, opts, "", "")
	case "html":
		var css []string
		if o.CSS != "" {
			css = strings.Split(o.CSS, ",")
		}
		return tools.RenderSpecPage(spec, w, css, o.Graph)
	}
	return fmt.Errorf("unknown format '%s'", o.Format)
}

// watch renders and then renders again whenever the input file is
// written.  Editors that replace the file are handled by watching the
// directory.
func watch(o *RenderOpts, stdout io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	input, err := filepath.Abs(o.Input)
	if err != nil {
		return err
	}
	if err = w.Add(filepath.Dir(input)); err != nil {
		return err
	}

	render := func() {
		if err := renderOnce(o, stdout); err != nil {
			fmt.Fprintf(os.Stderr, "render error: %v\n", err)
			return
		}
		fmt.Fprintf(os.Stderr, "rendered %s\n", o.Input)
	}

	render()

	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != input {
				continue
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				render()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
