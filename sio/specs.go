package sio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/crew"
)

// SpecMaker makes a compiled Spec.  Specs implemented in Go register
// one with Specs.Register.
type SpecMaker func(ctx context.Context) (*core.Spec, error)

// Specs finds compiled specs for crew.SpecSources.
//
// A source is tried by .Inline, .Name, .URL, and .Source in that
// order.  A name is either registered or a file in Dir.  The URL can
// be a 'file://' (with support for relative paths).  The Source can
// be JSON or YAML.
type Specs struct {
	Dir          string
	Interpreters core.InterpretersMap
	Client       *http.Client

	sync.Mutex
	makers map[string]SpecMaker
	named  map[string]*core.Spec
}

// NewSpecs makes a Specs that finds named specs in the given
// directory.
func NewSpecs(dir string, interpreters core.InterpretersMap) *Specs {
	return &Specs{
		Dir:          dir,
		Interpreters: interpreters,
		Client:       http.DefaultClient,
		makers:       make(map[string]SpecMaker),
		named:        make(map[string]*core.Spec),
	}
}

// Register adds a SpecMaker for the given name.
func (s *Specs) Register(name string, f SpecMaker) {
	s.Lock()
	s.makers[name] = f
	delete(s.named, name)
	s.Unlock()
}

// FindSpec implements crew.SpecProvider.
func (s *Specs) FindSpec(ctx context.Context, src *crew.SpecSource) (*core.Spec, error) {
	if src == nil {
		return nil, errors.New("no spec source")
	}

	if src.Inline != nil {
		if err := src.Inline.Compile(ctx, nil, s.Interpreters, false); err != nil {
			return nil, err
		}
		return src.Inline, nil
	}

	if src.Name != "" {
		return s.byName(ctx, src.Name)
	}

	var (
		body []byte
		err  error
	)

	if src.URL != "" {
		if body, err = s.fetch(ctx, src.URL); err != nil {
			return nil, err
		}
	}

	if src.Source != "" {
		body = []byte(src.Source)
	}

	return s.compile(ctx, body)
}

func (s *Specs) compile(ctx context.Context, body []byte) (*core.Spec, error) {
	spec, err := core.ParseSpec(body)
	if err != nil {
		return nil, err
	}
	if err = spec.Compile(ctx, nil, s.Interpreters, true); err != nil {
		return nil, err
	}
	return spec, nil
}

func (s *Specs) byName(ctx context.Context, name string) (*core.Spec, error) {
	s.Lock()
	defer s.Unlock()

	if spec, have := s.named[name]; have {
		return spec, nil
	}

	var (
		spec *core.Spec
		err  error
	)
	if f, have := s.makers[name]; have {
		spec, err = f(ctx)
	} else {
		spec, err = s.file(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	s.named[name] = spec
	return spec, nil
}

func (s *Specs) file(ctx context.Context, name string) (*core.Spec, error) {
	if strings.Contains(name, "..") {
		return nil, fmt.Errorf("bad spec name '%s'", name)
	}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		body, err := os.ReadFile(filepath.Join(s.Dir, name+ext))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.compile(ctx, body)
	}
	return nil, fmt.Errorf("no spec named '%s'", name)
}

func (s *Specs) fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "file://") {
		return os.ReadFile(url[7:])
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// AsSpecSource makes a SpecSource from a name or from something that
// looks like a SpecSource.
func AsSpecSource(x interface{}) (*crew.SpecSource, error) {
	if name, is := x.(string); is {
		return crew.NewSpecSource(name), nil
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var src crew.SpecSource
	if err = json.Unmarshal(js, &src); err != nil {
		return nil, err
	}
	return &src, nil
}
