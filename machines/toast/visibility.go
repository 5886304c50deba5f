package toast

import (
	"context"
	"sync"

	"github.com/Comcast/uimachine/core"
)

// Visibility reports whether the page (or whatever hosts the toasts)
// is hidden.
type Visibility interface {
	// Watch calls the function whenever visibility changes until
	// the returned Disposer is disposed.
	Watch(func(hidden bool)) core.Disposer
}

// trackVisibility sends PAUSE when the page is hidden and RESUME when
// it's shown again, if the toast has pauseOnPageIdle.
func trackVisibility(v Visibility) core.ActivityFunc {
	return func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) (core.Disposer, error) {
		if on, _ := bs["pauseOnPageIdle"].(bool); !on || v == nil {
			return nil, nil
		}
		return v.Watch(func(hidden bool) {
			if hidden {
				meta.Send(core.NewEvent("PAUSE"))
			} else {
				meta.Send(core.NewEvent("RESUME"))
			}
		}), nil
	}
}

// Page is a Visibility that's set by hand.
type Page struct {
	sync.Mutex
	hidden   bool
	seq      int
	watchers map[int]func(bool)
}

// NewPage makes a visible Page.
func NewPage() *Page {
	return &Page{
		watchers: make(map[int]func(bool)),
	}
}

func (p *Page) Watch(f func(hidden bool)) core.Disposer {
	p.Lock()
	p.seq++
	id := p.seq
	p.watchers[id] = f
	p.Unlock()
	return core.Once(core.DisposeFunc(func() {
		p.Lock()
		delete(p.watchers, id)
		p.Unlock()
	}))
}

// SetHidden changes the page's visibility and tells every watcher.
func (p *Page) SetHidden(hidden bool) {
	p.Lock()
	if p.hidden == hidden {
		p.Unlock()
		return
	}
	p.hidden = hidden
	fs := make([]func(bool), 0, len(p.watchers))
	for _, f := range p.watchers {
		fs = append(fs, f)
	}
	p.Unlock()
	for _, f := range fs {
		f(hidden)
	}
}

// Watchers returns the number of current watchers.
func (p *Page) Watchers() int {
	p.Lock()
	defer p.Unlock()
	return len(p.watchers)
}
