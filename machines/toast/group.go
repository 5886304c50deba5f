package toast

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/crew"
	"github.com/Comcast/uimachine/service"
	"github.com/Comcast/uimachine/timers"

	"go.uber.org/zap"
)

// Group owns a set of toasts.  Toasts that finish are removed when
// their REMOVE_TOAST message is delivered (see Deliver and Run).
type Group struct {
	crew   *crew.Crew
	logger *zap.Logger

	// Defaults are applied to toasts created without their own
	// values.
	Defaults Options

	// Max limits the number of live toasts.  Zero means no limit.
	// When full, the oldest toast is dismissed.
	Max int

	sync.Mutex
	seq   int
	order []string
}

// GroupOption configures a Group.
type GroupOption func(*groupConf)

type groupConf struct {
	logger *zap.Logger
	clock  timers.Clock
}

func GroupLogger(logger *zap.Logger) GroupOption {
	return func(c *groupConf) {
		c.logger = logger
	}
}

func GroupClock(clock timers.Clock) GroupOption {
	return func(c *groupConf) {
		c.clock = clock
	}
}

// NewGroup makes an empty Group.
func NewGroup(id string, opts ...GroupOption) *Group {
	conf := &groupConf{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(conf)
	}
	cops := []crew.Option{crew.WithLogger(conf.logger)}
	if conf.clock != nil {
		cops = append(cops, crew.WithClock(conf.clock))
	}
	return &Group{
		crew:   crew.NewCrew(id, cops...),
		logger: conf.logger.With(zap.String("group", id)),
	}
}

func (g *Group) fill(o Options) Options {
	d := g.Defaults
	if o.Type == "" {
		o.Type = d.Type
	}
	if o.Duration == 0 {
		o.Duration = d.Duration
	}
	if o.RemoveDelay == 0 {
		o.RemoveDelay = d.RemoveDelay
	}
	if o.Placement == "" {
		o.Placement = d.Placement
	}
	if o.Visibility == nil {
		o.Visibility = d.Visibility
		o.PauseOnPageIdle = o.PauseOnPageIdle || d.PauseOnPageIdle
	}
	return o
}

// Create starts a new toast and returns its id.
func (g *Group) Create(ctx context.Context, o Options, opts ...service.Option) (string, error) {
	g.Lock()
	g.seq++
	if o.Id == "" {
		o.Id = "toast-" + strconv.Itoa(g.seq)
	}
	var oldest string
	if 0 < g.Max && g.Max <= len(g.order) {
		oldest = g.order[0]
	}
	g.Unlock()

	if oldest != "" {
		g.logger.Debug("full", zap.String("dismissing", oldest))
		g.Dismiss(oldest)
	}

	o = g.fill(o).withDefaults()
	spec, err := Spec(ctx, o)
	if err != nil {
		return "", err
	}
	if _, err = g.crew.Spawn(ctx, o.Id, spec, opts...); err != nil {
		return "", err
	}

	g.Lock()
	g.order = append(g.order, o.Id)
	g.Unlock()

	return o.Id, nil
}

// Update sends an UPDATE with the given properties ("type",
// "duration" in milliseconds, "title", ...) to the toast.
func (g *Group) Update(id string, props map[string]interface{}) error {
	return g.crew.Send(id, core.NewEvent("UPDATE", "toast", props))
}

// Dismiss starts the given toast's exit.
func (g *Group) Dismiss(id string) error {
	return g.crew.Send(id, core.NewEvent("DISMISS"))
}

// DismissAll dismisses every toast.
func (g *Group) DismissAll() {
	g.crew.Broadcast(core.NewEvent("DISMISS"))
}

func (g *Group) Pause(id string) error {
	return g.crew.Send(id, core.NewEvent("PAUSE"))
}

func (g *Group) Resume(id string) error {
	return g.crew.Send(id, core.NewEvent("RESUME"))
}

func (g *Group) PauseAll() {
	g.crew.Broadcast(core.NewEvent("PAUSE"))
}

func (g *Group) ResumeAll() {
	g.crew.Broadcast(core.NewEvent("RESUME"))
}

// Remove stops the toast immediately.
func (g *Group) Remove(id string) error {
	g.Lock()
	for i, x := range g.order {
		if x == id {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
	g.Unlock()
	return g.crew.Remove(id)
}

// Toast is a snapshot of one toast.
type Toast struct {
	Id    string      `json:"id"`
	State *core.State `json:"state"`
}

// Toasts returns snapshots of the live toasts in creation order.
func (g *Group) Toasts() []Toast {
	g.Lock()
	ids := append([]string(nil), g.order...)
	g.Unlock()
	snaps := g.crew.Snapshots()
	acc := make([]Toast, 0, len(ids))
	for _, id := range ids {
		if st, have := snaps[id]; have {
			acc = append(acc, Toast{Id: id, State: st})
		}
	}
	return acc
}

// Placements groups the live toasts' ids by placement.
func (g *Group) Placements() map[string][]string {
	acc := make(map[string][]string)
	for _, t := range g.Toasts() {
		p, _ := t.State.Context["placement"].(string)
		acc[p] = append(acc[p], t.Id)
	}
	for _, ids := range acc {
		sort.Strings(ids)
	}
	return acc
}

func (g *Group) handle(msg crew.Message) {
	switch msg.Event.Type() {
	case RemoveEvent:
		id, _ := msg.Event["id"].(string)
		if id == "" {
			id = msg.From
		}
		g.logger.Debug("removing", zap.String("toast", id))
		if err := g.Remove(id); err != nil {
			g.logger.Warn("remove", zap.String("toast", id), zap.Error(err))
		}
	default:
		g.logger.Debug("ignoring", zap.String("from", msg.From), zap.String("event", msg.Event.Type()))
	}
}

// Deliver handles pending messages from toasts in the calling
// goroutine.
func (g *Group) Deliver() int {
	return g.crew.Deliver(g.handle)
}

// Run handles messages from toasts until the context is done.
func (g *Group) Run(ctx context.Context) error {
	return g.crew.Run(ctx, g.handle)
}

// Stop removes every toast.
func (g *Group) Stop() {
	g.crew.Stop()
	g.Lock()
	g.order = nil
	g.Unlock()
}
