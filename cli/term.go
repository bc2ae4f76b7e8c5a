package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"
)

// terminalPresenter renders bus notifications on a terminal. Dialogs block
// on a prompt until the user picks an action; tips and loading indicators
// print and move on.
type terminalPresenter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPresenter(in io.Reader, out io.Writer) *terminalPresenter {
	return &terminalPresenter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// attach subscribes the presenter to the dispatcher.
func (p *terminalPresenter) attach(d bus.Dispatcher) []bus.Subscription {
	return []bus.Subscription{
		d.Subscribe(workbench.KindDialog, p.handle),
		d.Subscribe(workbench.KindTip, p.handle),
		d.Subscribe(workbench.KindLoading, p.handle),
	}
}

func (p *terminalPresenter) handle(event workbench.Event) {
	switch e := event.(type) {
	case *workbench.DialogRequest:
		p.presentDialog(e)
	case *workbench.TipRequest:
		fmt.Fprintf(p.out, "[%s] %s\n", e.Severity, e.Content)
	case *workbench.Loading:
		if e.Active {
			fmt.Fprintf(p.out, "... %s\n", e.Text)
		}
	}
}

// presentDialog prompts for one of the dialog's actions. EOF or an
// unrecognized answer dismisses the dialog.
func (p *terminalPresenter) presentDialog(req *workbench.DialogRequest) {
	if req.Title != "" {
		fmt.Fprintf(p.out, "\n%s\n", req.Title)
	}
	fmt.Fprintln(p.out, req.Content)

	if len(req.Actions) == 0 {
		req.Dismiss()
		return
	}

	labels := make([]string, len(req.Actions))
	for i, action := range req.Actions {
		labels[i] = fmt.Sprintf("%d) %s", i+1, action.Label)
	}
	fmt.Fprintf(p.out, "%s > ", strings.Join(labels, "  "))

	line, err := p.in.ReadString('\n')
	if err != nil {
		req.Dismiss()
		return
	}
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(req.Actions) {
		req.Dismiss()
		return
	}
	if invoke := req.Actions[choice-1].Invoke; invoke != nil {
		invoke()
	}
}
