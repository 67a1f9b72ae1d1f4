// Package terminal is an interactive front end for a layout document. It
// draws node boxes, highlights the ones currently visible and turns terminal
// input into document scrolling and resizing plus the matching visibility
// signals.
package terminal

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/inview/internal/inview"
	"github.com/dshills/inview/internal/layout"
)

// statusHeight is the number of rows reserved below the viewport.
const statusHeight = 1

// WheelStep is the number of rows scrolled per mouse wheel notch.
const WheelStep = 3

var (
	visibleStyle = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	hiddenStyle  = tcell.StyleDefault.Dim(true)
	statusStyle  = tcell.StyleDefault.Reverse(true)
)

type quitToken struct{}

// Option configures a Screen.
type Option func(*Screen)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Screen) { s.log = l }
}

// Screen renders a Document on a tcell screen. It implements
// inview.SignalSource.
type Screen struct {
	screen tcell.Screen
	doc    *layout.Document
	log    zerolog.Logger

	mu      sync.Mutex
	subs    map[int]func(inview.Signal)
	nextID  int
	visible map[string]bool
}

// New creates a Screen on the controlling terminal.
func New(doc *layout.Document, opts ...Option) (*Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(screen, doc, opts...), nil
}

// NewWithScreen creates a Screen on an existing tcell screen.
func NewWithScreen(screen tcell.Screen, doc *layout.Document, opts ...Option) *Screen {
	s := &Screen{
		screen:  screen,
		doc:     doc,
		log:     zerolog.Nop(),
		subs:    make(map[int]func(inview.Signal)),
		visible: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init initializes the terminal and sizes the document's viewport to it.
func (s *Screen) Init() error {
	if err := s.screen.Init(); err != nil {
		return err
	}
	s.screen.EnableMouse()
	s.screen.EnableFocus()
	s.screen.HideCursor()

	w, h := s.screen.Size()
	s.resize(w, h)
	return nil
}

// Fini restores the terminal.
func (s *Screen) Fini() {
	s.screen.Fini()
}

// Subscribe implements inview.SignalSource.
func (s *Screen) Subscribe(fn func(inview.Signal)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// SetVisible marks a node as visible or hidden and requests a redraw.
// It may be called from any goroutine.
func (s *Screen) SetVisible(id string, visible bool) {
	s.mu.Lock()
	if visible {
		s.visible[id] = true
	} else {
		delete(s.visible, id)
	}
	s.mu.Unlock()

	_ = s.screen.PostEvent(tcell.NewEventInterrupt(nil)) // best-effort; queue may be full
}

// Visible reports whether a node is marked visible.
func (s *Screen) Visible(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible[id]
}

// Run emits SignalLoad, then processes terminal events until the user quits
// or ctx is done.
func (s *Screen) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.screen.PostEvent(tcell.NewEventInterrupt(quitToken{}))
	})
	defer stop()

	s.Draw()
	s.emit(inview.SignalLoad)

	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if s.Handle(ev) {
			return ctx.Err()
		}
	}
}

// Handle applies one terminal event and reports whether the user asked to quit.
func (s *Screen) Handle(ev tcell.Event) bool {
	switch e := ev.(type) {
	case *tcell.EventResize:
		w, h := e.Size()
		s.resize(w, h)
		s.emit(inview.SignalResize)

	case *tcell.EventKey:
		if quit := s.handleKey(e); quit {
			return true
		}

	case *tcell.EventMouse:
		btn := e.Buttons()
		switch {
		case btn&tcell.WheelUp != 0:
			s.scroll(0, -WheelStep)
		case btn&tcell.WheelDown != 0:
			s.scroll(0, WheelStep)
		case btn&tcell.WheelLeft != 0:
			s.scroll(-WheelStep, 0)
		case btn&tcell.WheelRight != 0:
			s.scroll(WheelStep, 0)
		}

	case *tcell.EventFocus:
		if e.Focused {
			s.emit(inview.SignalManual)
		}

	case *tcell.EventInterrupt:
		if _, ok := e.Data().(quitToken); ok {
			return true
		}
	}

	s.Draw()
	return false
}

func (s *Screen) handleKey(e *tcell.EventKey) bool {
	page := s.doc.Viewport().Height

	switch e.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		s.scroll(0, -1)
	case tcell.KeyDown:
		s.scroll(0, 1)
	case tcell.KeyLeft:
		s.scroll(-1, 0)
	case tcell.KeyRight:
		s.scroll(1, 0)
	case tcell.KeyPgUp:
		s.scroll(0, -page)
	case tcell.KeyPgDn:
		s.scroll(0, page)
	case tcell.KeyHome:
		x, _ := s.doc.Scroll()
		s.scrollTo(x, 0)
	case tcell.KeyEnd:
		x, _ := s.doc.Scroll()
		s.scrollTo(x, math.MaxFloat64)
	case tcell.KeyCtrlR:
		s.emit(inview.SignalManual)
	case tcell.KeyRune:
		switch e.Rune() {
		case 'q':
			return true
		case 'k':
			s.scroll(0, -1)
		case 'j':
			s.scroll(0, 1)
		case 'h':
			s.scroll(-1, 0)
		case 'l':
			s.scroll(1, 0)
		case ' ':
			s.scroll(0, page)
		}
	}
	return false
}

func (s *Screen) resize(w, h int) {
	s.doc.Resize(float64(w), float64(max(h-statusHeight, 1)))
}

func (s *Screen) scroll(dx, dy float64) {
	if s.doc.ScrollBy(dx, dy) {
		s.emit(inview.SignalScroll)
	}
}

func (s *Screen) scrollTo(x, y float64) {
	if s.doc.ScrollTo(x, y) {
		s.emit(inview.SignalScroll)
	}
}

func (s *Screen) emit(sig inview.Signal) {
	s.mu.Lock()
	fns := make([]func(inview.Signal), 0, len(s.subs))
	for _, id := range slices.Sorted(maps.Keys(s.subs)) {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	s.log.Trace().Str("signal", sig.String()).Msg("Signal")
	for _, fn := range fns {
		fn(sig)
	}
}

// Draw renders every node and the status line.
func (s *Screen) Draw() {
	s.screen.Clear()

	vp := s.doc.Viewport()
	vw, vh := int(vp.Width), int(vp.Height)
	nodes := s.doc.Nodes()

	shown := 0
	for _, n := range nodes {
		style := hiddenStyle
		if s.Visible(n.ElementID()) {
			style = visibleStyle
			shown++
		}
		s.drawBox(s.doc.Bounds(n), n.Label(), style, vw, vh)
	}

	_, y := s.doc.Scroll()
	s.drawStatus(fmt.Sprintf(" y=%d  visible %d/%d  [q]uit", int(y), shown, len(nodes)), vw, vh)
	s.screen.Show()
}

func (s *Screen) drawBox(r inview.Rect, label string, style tcell.Style, vw, vh int) {
	x0, y0 := int(math.Floor(r.Left)), int(math.Floor(r.Top))
	x1, y1 := int(math.Ceil(r.Right))-1, int(math.Ceil(r.Bottom))-1
	if x1 < x0 || y1 < y0 {
		return
	}

	set := func(x, y int, ch rune) {
		if x >= 0 && x < vw && y >= 0 && y < vh {
			s.screen.SetContent(x, y, ch, nil, style)
		}
	}

	if x1 == x0 || y1 == y0 {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				set(x, y, '█')
			}
		}
		return
	}

	for x := x0 + 1; x < x1; x++ {
		set(x, y0, '─')
		set(x, y1, '─')
	}
	for y := y0 + 1; y < y1; y++ {
		set(x0, y, '│')
		set(x1, y, '│')
	}
	set(x0, y0, '┌')
	set(x1, y0, '┐')
	set(x0, y1, '└')
	set(x1, y1, '┘')

	x := x0 + 1
	for _, ch := range label {
		if x >= x1 {
			break
		}
		set(x, y0, ch)
		x++
	}
}

func (s *Screen) drawStatus(text string, vw, vh int) {
	x := 0
	for _, ch := range text {
		if x >= vw {
			return
		}
		s.screen.SetContent(x, vh, ch, nil, statusStyle)
		x++
	}
	for ; x < vw; x++ {
		s.screen.SetContent(x, vh, ' ', nil, statusStyle)
	}
}
