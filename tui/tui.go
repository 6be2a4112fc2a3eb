// Package tui renders a live dashboard of one hart's CSR file, trigger
// engine, and MCM violation feed, grounded on debugger/tui.go's
// tview.Flex-of-TextView layout and its Update*View/RefreshAll idiom.
package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rvtrace/rvcore-sim/csr"
	"github.com/rvtrace/rvcore-sim/service"
)

// TUI is the text dashboard for one hart's Inspector.
type TUI[U csr.Uint] struct {
	Inspector *service.Inspector[U]
	App       *tview.Application
	Pages     *tview.Pages

	MainLayout *tview.Flex

	CsrView       *tview.TextView
	TriggerView   *tview.TextView
	ViolationView *tview.TextView
	StatusView    *tview.TextView
}

// NewTUI builds a TUI over ins and wires its key bindings and layout.
func NewTUI[U csr.Uint](ins *service.Inspector[U]) *TUI[U] {
	return newTUI(ins, tview.NewApplication())
}

// NewTUIWithScreen builds a TUI against an already-constructed tview
// Application, letting tests inject a tcell.SimulationScreen instead of a
// real terminal.
func NewTUIWithScreen[U csr.Uint](ins *service.Inspector[U], screen tcell.Screen) *TUI[U] {
	app := tview.NewApplication().SetScreen(screen)
	return newTUI(ins, app)
}

func newTUI[U csr.Uint](ins *service.Inspector[U], app *tview.Application) *TUI[U] {
	t := &TUI[U]{
		Inspector: ins,
		App:       app,
	}
	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()
	ins.OnChange(func() { t.App.QueueUpdateDraw(t.RefreshAll) })
	return t
}

func (t *TUI[U]) initializeViews() {
	t.CsrView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.CsrView.SetBorder(true).SetTitle(" CSRs ")

	t.TriggerView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.TriggerView.SetBorder(true).SetTitle(" Triggers ")

	t.ViolationView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(true)
	t.ViolationView.SetBorder(true).SetTitle(" MCM Violations ")

	t.StatusView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	t.StatusView.SetBorder(true).SetTitle(" Status ")
}

func (t *TUI[U]) buildLayout() {
	top := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.CsrView, 0, 2, false).
		AddItem(t.TriggerView, 0, 1, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.StatusView, 3, 0, false).
		AddItem(top, 0, 3, false).
		AddItem(t.ViolationView, 0, 2, false)

	t.Pages = tview.NewPages().AddPage("main", t.MainLayout, true, true)
}

func (t *TUI[U]) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

// RefreshAll redraws every panel from the Inspector's current snapshot.
func (t *TUI[U]) RefreshAll() {
	t.updateStatusView()
	t.updateCsrView()
	t.updateTriggerView()
	t.updateViolationView()
	t.App.Draw()
}

func (t *TUI[U]) updateStatusView() {
	state, err := t.Inspector.State()
	color := "green"
	switch state {
	case service.StateFailed:
		color = "red"
	case service.StateIdle:
		color = "yellow"
	}
	line := fmt.Sprintf("[%s]hart %d: %s[white]", color, t.Inspector.HartIndex(), state)
	if err != nil {
		line += fmt.Sprintf("  [red]%v[white]", err)
	}
	t.StatusView.SetText(line)
}

func (t *TUI[U]) updateCsrView() {
	t.CsrView.Clear()
	var lines []string
	for _, c := range t.Inspector.CsrStates() {
		marker := " "
		if c.ReadOnly {
			marker = "R"
		}
		lines = append(lines, fmt.Sprintf("%s 0x%03x %-12s 0x%x", marker, c.Number, c.Name, c.Value))
	}
	t.CsrView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI[U]) updateTriggerView() {
	t.TriggerView.Clear()
	var lines []string
	for _, tr := range t.Inspector.TriggerStates() {
		chain := ""
		if tr.Chained {
			chain = " [yellow]chained[white]"
		}
		lines = append(lines, fmt.Sprintf("#%d %-9s tdata2=0x%x%s", tr.Index, tr.Type, tr.Tdata2, chain))
	}
	t.TriggerView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI[U]) updateViolationView() {
	t.ViolationView.Clear()
	vs := t.Inspector.Violations()
	if len(vs) == 0 {
		t.ViolationView.SetText("[green]no violations[white]")
		return
	}
	var lines []string
	for _, v := range vs {
		color := "red"
		if v.Warning {
			color = "yellow"
		}
		if v.Rule != 0 {
			lines = append(lines, fmt.Sprintf("[%s]R%d[white] hart=%d tag1=%d tag2=%d t1=%d t2=%d pa=0x%x",
				color, v.Rule, v.HartIx, v.Tag, v.Tag2, v.Time, v.Time2, v.PhysAddr))
		} else {
			lines = append(lines, fmt.Sprintf("[%s]%s[white] hart=%d tag=%d pa=0x%x: %s",
				color, v.Kind, v.HartIx, v.Tag, v.PhysAddr, v.Message))
		}
	}
	t.ViolationView.SetText(strings.Join(lines, "\n"))
}

// Run starts the TUI event loop until Stop is called.
func (t *TUI[U]) Run() error {
	t.RefreshAll()
	return t.App.SetRoot(t.Pages, true).Run()
}

// Stop stops the TUI application.
func (t *TUI[U]) Stop() { t.App.Stop() }
