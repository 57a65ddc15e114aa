package condition

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/flowmesh/flowmesh/internal/storage"
)

/*
Compile turns a user-authored CEL expression string into a Predicate.
The expression is evaluated with two variables bound:

  - node_args: the flow's current node_args, as a dynamic value
  - results: a map of upstream task name -> stored result, filled
    before every evaluation by reading each task named in storageOf,
    whether or not the expression refers to it

storageOf lists which storage adapter each upstream task result should
be read through; it is compiled from the same flow definition that
declares the edge (see internal/compiler).

Grounded on 88lin-divinesense's CEL usage
(server/router/api/v1/user_service_crud.go): cel.NewEnv with declared
variables, env.Compile, then cel.Program.Eval per call.
*/
func Compile(expr string, storageOf map[string]string) (Predicate, error) {
	env, err := cel.NewEnv(
		cel.Variable("node_args", cel.DynType),
		cel.Variable("results", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("condition: new CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("condition: compile %q: %w", expr, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("condition: program %q: %w", expr, err)
	}

	return func(ctx context.Context, pool *storage.ScopedPool, nodeArgs any) (bool, error) {
		results := make(map[string]any, len(storageOf))
		for taskName, storageName := range storageOf {
			v, err := pool.Get(ctx, storageName, taskName)
			if err != nil {
				return false, fmt.Errorf("condition: reading %q: %w", taskName, err)
			}
			results[taskName] = v
		}

		out, _, err := prg.Eval(map[string]any{
			"node_args": nodeArgs,
			"results":   results,
		})
		if err != nil {
			return false, fmt.Errorf("condition: eval %q: %w", expr, err)
		}

		fired, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("condition: %q did not evaluate to bool", expr)
		}
		return fired, nil
	}, nil
}
