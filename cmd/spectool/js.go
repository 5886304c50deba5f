/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// MacroOpts say where the macro driver and macros are.
type MacroOpts struct {
	Driver string
	Dir    string
}

func ExpandFlags() (*flag.FlagSet, *MacroOpts) {
	o := &MacroOpts{}
	fs := flag.NewFlagSet("expand", flag.ExitOnError)
	fs.StringVar(&o.Driver, "driver", "driver.js", "script that defines expand(spec)")
	fs.StringVar(&o.Dir, "macros", "macros", "directory of macro scripts (*.js)")
	return fs, o
}

// MacroExpander runs a spec (as plain data) through the Javascript
// function expand() defined by a driver script and macros.
type MacroExpander struct {
	JS *goja.Runtime
}

func (m *MacroExpander) init() error {
	m.JS = goja.New()
	env := make(map[string]interface{})
	m.JS.Set("_", env)

	env["log"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		bs, err := json.Marshal(&x)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s\n", bs)

		return x
	}

	return nil
}

func (m *MacroExpander) load(filename string) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	_, err = m.JS.RunScript(filename, string(src))
	return err
}

func (m *MacroExpander) loadMacros(dir string) error {
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var filenames []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".js") {
			filenames = append(filenames, file.Name())
		}
	}
	sort.Strings(filenames)

	for _, filename := range filenames {
		if err = m.load(filepath.Join(dir, filename)); err != nil {
			return err
		}
	}

	return nil
}

// MacroExpand loads the driver and the macros and then returns
// expand(x).
func MacroExpand(x interface{}, driver, dir string) (interface{}, error) {

	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}

	m := &MacroExpander{}

	if err := m.init(); err != nil {
		return nil, err
	}

	if err := m.load(driver); err != nil {
		return nil, err
	}

	if err := m.loadMacros(dir); err != nil {
		return nil, err
	}

	v, err := m.JS.RunString(fmt.Sprintf("expand(%s)", js))
	if err != nil {
		return nil, err
	}

	return v.Export(), nil
}
