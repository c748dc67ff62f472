package tools

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/chatmodel"
	"github.com/effective-security/mcpchat/llmutils"
	"github.com/effective-security/mcpchat/schema"
)

// FuncTool adapts a typed Go function into an ITool, deriving the
// parameters schema from the input type.
type FuncTool[I any, O any] struct {
	name        string
	description string
	funcParams  any
	run         func(context.Context, *I) (*O, error)
}

// NewFunc creates a tool backed by the given function.
func NewFunc[I any, O any](name, description string, run func(context.Context, *I) (*O, error)) (*FuncTool[I, O], error) {
	var def I
	sc, err := schema.New(reflect.TypeOf(def))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &FuncTool[I, O]{
		name:        name,
		description: description,
		funcParams:  sc.Parameters,
		run:         run,
	}, nil
}

var _ ITool = (*FuncTool[any, any])(nil)

func (t *FuncTool[I, O]) Name() string {
	return t.name
}

func (t *FuncTool[I, O]) Description() string {
	return t.description
}

func (t *FuncTool[I, O]) Parameters() any {
	return t.funcParams
}

func (t *FuncTool[I, O]) Call(ctx context.Context, input string) (string, error) {
	var tin I
	if parser, ok := (any)(&tin).(chatmodel.InputParser); ok {
		if err := parser.ParseInput(input); err != nil {
			return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
		}
	} else if err := llmutils.UnmarshalLoose([]byte(input), &tin); err != nil {
		return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}

	res, err := t.run(ctx, &tin)
	if err != nil {
		return "", err
	}
	return chatmodel.Stringify(res), nil
}

func (t *FuncTool[I, O]) Run(ctx context.Context, input *I) (*O, error) {
	return t.run(ctx, input)
}
