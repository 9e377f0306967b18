package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-dispatch/constraint"
	"github.com/goliatone/go-dispatch/workflow"
)

type documentWorkflow = workflow.Workflow[workflow.Name, *workflow.Document]

// DocumentFlags describe the document and the acting namespace.
type DocumentFlags struct {
	State     string            `help:"Current state; defaults to the definition default."`
	Role      string            `help:"Acting role, exposed to guards as the role namespace key."`
	Field     map[string]string `help:"Document field as key=value. Repeatable."`
	Namespace map[string]string `name:"ns" help:"Extra namespace entry as key=value. Repeatable."`
}

func (f DocumentFlags) document(wf *documentWorkflow) (*workflow.Document, error) {
	doc := &workflow.Document{Fields: make(map[string]any, len(f.Field))}
	for k, v := range f.Field {
		doc.Fields[k] = v
	}
	if f.State != "" {
		st, err := wf.Get(f.State)
		if err != nil {
			return nil, err
		}
		doc.SetState(st)
	}
	return doc, nil
}

func (f DocumentFlags) namespace() constraint.Namespace {
	ns := make(constraint.Namespace, len(f.Namespace)+1)
	for k, v := range f.Namespace {
		ns[k] = v
	}
	if f.Role != "" {
		ns[constraint.RoleKey] = f.Role
	}
	return ns
}

func (g *Globals) load() (*documentWorkflow, error) {
	def, err := workflow.LoadDefinitionFile(g.Def)
	if err != nil {
		return nil, err
	}
	wf, err := workflow.Build[*workflow.Document](def, workflow.DocumentGuards())
	if err != nil {
		return nil, err
	}
	g.logger.Debug("loaded workflow %q from %s", wf.Name(), g.Def)
	return wf, nil
}

// TransitionsCmd lists the transitions whose guards pass.
type TransitionsCmd struct {
	DocumentFlags
}

func (c *TransitionsCmd) Run(g *Globals) error {
	wf, err := g.load()
	if err != nil {
		return err
	}
	doc, err := c.document(wf)
	if err != nil {
		return err
	}
	ctx := wf.Context(doc, c.namespace())
	fmt.Fprintf(g.out, "state: %s\n", ctx.State())
	for tr := range ctx.Available() {
		fmt.Fprintf(g.out, "  %s\n", tr)
	}
	return nil
}

// ApplyCmd moves the document to the target state, reporting guard
// violations when the move is refused.
type ApplyCmd struct {
	DocumentFlags
	To string `required:"" help:"Target state."`
}

func (c *ApplyCmd) Run(g *Globals) error {
	wf, err := g.load()
	if err != nil {
		return err
	}
	doc, err := c.document(wf)
	if err != nil {
		return err
	}
	target, err := wf.Get(c.To)
	if err != nil {
		return err
	}

	_, err = wf.OnTransition(func(_ context.Context, evt workflow.TransitionEvent[workflow.Name, *workflow.Document]) (any, error) {
		g.logger.Info("transition %s applied (event %s)", evt.Transition.Action.Name, evt.ID)
		return nil, nil
	})
	if err != nil {
		return err
	}

	ctx := wf.Context(doc, c.namespace())
	from := ctx.State()
	if err := ctx.TransitionTo(context.Background(), target); err != nil {
		var agg *constraint.Errors
		if errors.As(err, &agg) {
			for _, msg := range agg.Messages() {
				fmt.Fprintf(g.out, "denied: %s\n", msg)
			}
			return agg.AppError()
		}
		return err
	}
	fmt.Fprintf(g.out, "%s -> %s\n", from, doc.State())
	return nil
}

// GraphCmd prints the definition as a state list and an edge list.
type GraphCmd struct{}

func (c *GraphCmd) Run(g *Globals) error {
	wf, err := g.load()
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out, "workflow: %s\n", wf.Name())
	fmt.Fprintln(g.out, "states:")
	for _, st := range wf.States().All() {
		marker := ""
		if st == wf.DefaultState() {
			marker = " (default)"
		}
		fmt.Fprintf(g.out, "  %s%s\n", st, marker)
	}
	fmt.Fprintln(g.out, "transitions:")
	for tr := range wf.Transitions().All() {
		fmt.Fprintf(g.out, "  %s%s\n", tr, guardSummary(tr.Action.Constraints))
	}
	return nil
}

func guardSummary(set constraint.Set[*workflow.Document]) string {
	if len(set) == 0 {
		return ""
	}
	return fmt.Sprintf(" (guards: %d)", len(set))
}
