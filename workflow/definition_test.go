package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
)

const publishingYAML = `
name: publishing
states: [draft, submitted, published]
default: draft
transitions:
  - name: submit
    title: Submit for review
    from: draft
    to: submitted
    guards:
      - non_empty: body
      - role: owner
  - name: publish
    from: submitted
    to: published
    guards:
      - non_empty: body
      - any_of:
          - [{role: publisher}]
          - [{role: admin}, {field_equals: {field: urgent, value: true}}]
  - name: retract
    from: submitted
    to: draft
`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(publishingYAML))
	require.NoError(t, err)

	assert.Equal(t, "publishing", def.Name)
	assert.Equal(t, []string{"draft", "submitted", "published"}, def.States)
	require.Len(t, def.Transitions, 3)

	submit := def.Transitions[0]
	assert.Equal(t, "Submit for review", submit.Title)
	assert.Equal(t, []GuardDefinition{
		{Name: "non_empty", Args: "body"},
		{Name: "role", Args: "owner"},
	}, submit.Guards)

	assert.Equal(t, GuardAnyOf, def.Transitions[1].Guards[1].Name)
	assert.Empty(t, def.Transitions[2].Guards)
}

func TestParseDefinition_BareGuardName(t *testing.T) {
	def, err := ParseDefinition([]byte(`
states: [a, b]
transitions:
  - {name: go, from: a, to: b, guards: [ready]}
`))
	require.NoError(t, err)
	assert.Equal(t, []GuardDefinition{{Name: "ready"}}, def.Transitions[0].Guards)
	assert.Equal(t, Name("a"), def.DefaultState())
}

func TestDefinition_ValidateReportsEveryProblem(t *testing.T) {
	def := Definition{
		States:  []string{"a", "a", ""},
		Default: "z",
		Transitions: []TransitionDefinition{
			{From: "a", To: "b"},
			{Name: "dup", From: "a", To: "a"},
			{Name: "dup2", From: "a", To: "a"},
		},
	}
	err := def.Validate()
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"state declared twice",
		"state name cannot be empty",
		"default state is not declared",
		"transition name is required",
		"transition target is not declared",
		"transition declared twice",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestParseDefinition_RejectsMalformedGuard(t *testing.T) {
	_, err := ParseDefinition([]byte(`
states: [a, b]
transitions:
  - name: go
    from: a
    to: b
    guards:
      - {role: owner, non_empty: body}
`))
	require.Error(t, err)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidDefinition))
}

func TestBuild_DocumentWorkflow(t *testing.T) {
	def, err := ParseDefinition([]byte(publishingYAML))
	require.NoError(t, err)

	wf, err := Build[*Document](def, DocumentGuards())
	require.NoError(t, err)
	assert.Equal(t, "publishing", wf.Name())
	assert.Equal(t, Name("draft"), wf.DefaultState())

	doc := &Document{Fields: map[string]any{"body": "text"}}
	ctx := wf.Context(doc, constraint.Namespace{"role": "owner"})
	require.NoError(t, ctx.TransitionTo(context.Background(), "submitted"))
	assert.Equal(t, Name("submitted"), doc.State())

	owner := wf.Context(doc, constraint.Namespace{"role": "owner"})
	assert.Equal(t, []string{"retract"}, transitionNames(owner.PossibleTransitions()))

	publisher := wf.Context(doc, constraint.Namespace{"role": "publisher"})
	assert.Equal(t, []string{"publish", "retract"}, transitionNames(publisher.PossibleTransitions()))

	admin := wf.Context(doc, constraint.Namespace{"role": "admin"})
	assert.Equal(t, []string{"retract"}, transitionNames(admin.PossibleTransitions()))

	doc.Fields["urgent"] = true
	assert.Equal(t, []string{"publish", "retract"}, transitionNames(admin.PossibleTransitions()))
}

func TestBuild_AnyOfReportsOneViolationPerBranch(t *testing.T) {
	def, err := ParseDefinition([]byte(publishingYAML))
	require.NoError(t, err)
	wf, err := Build[*Document](def, DocumentGuards())
	require.NoError(t, err)

	doc := &Document{Status: "submitted", Fields: map[string]any{"body": "text"}}
	err = wf.Context(doc, constraint.Namespace{"role": "guest"}).TransitionTo(context.Background(), "published")

	var agg *constraint.Errors
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, []string{
		"Unauthorized. Missing the `publisher` role.",
		"Unauthorized. Missing the `admin` role.",
	}, agg.Messages())
}

func TestBuild_UnknownGuard(t *testing.T) {
	def := Definition{
		States: []string{"a", "b"},
		Transitions: []TransitionDefinition{
			{Name: "go", From: "a", To: "b", Guards: []GuardDefinition{{Name: "missing"}}},
		},
	}
	_, err := Build[*Document](def, DocumentGuards())
	require.Error(t, err)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidDefinition))
	assert.Contains(t, err.Error(), "cannot resolve transition guards")
}

func TestBuild_BadGuardArguments(t *testing.T) {
	def := Definition{
		States: []string{"a", "b"},
		Transitions: []TransitionDefinition{
			{Name: "go", From: "a", To: "b", Guards: []GuardDefinition{{Name: "role", Args: 42}}},
		},
	}
	_, err := Build[*Document](def, DocumentGuards())
	require.Error(t, err)
}

func TestLoadDefinitionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publishing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(publishingYAML), 0o600))

	def, err := LoadDefinitionFile(path)
	require.NoError(t, err)
	assert.Equal(t, "publishing", def.Name)

	_, err = LoadDefinitionFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidDefinition))
}

func transitionNames[T any](trs []Transition[Name, T]) []string {
	out := make([]string, 0, len(trs))
	for _, tr := range trs {
		out = append(out, tr.Action.Name)
	}
	return out
}
