package main

import (
	"context"

	gocmd "github.com/goliatone/go-command"
)

type validatable interface {
	Validate() error
}

type executor[M any] interface {
	Execute(ctx context.Context, msg M) error
}

// runCommand validates msg, executes it and returns the value the handler
// stored in the result collector.
func runCommand[M any, R any](ctx context.Context, handler executor[M], msg M) (R, error) {
	var zero R
	if v, ok := any(msg).(validatable); ok {
		if err := v.Validate(); err != nil {
			return zero, err
		}
	}
	collector := gocmd.NewResult[R]()
	if err := handler.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, _ := collector.Load()
	return out, nil
}

type querier[M any, R any] interface {
	Query(ctx context.Context, msg M) (R, error)
}

func runQuery[M any, R any](ctx context.Context, handler querier[M, R], msg M) (R, error) {
	if v, ok := any(msg).(validatable); ok {
		if err := v.Validate(); err != nil {
			var zero R
			return zero, err
		}
	}
	return handler.Query(ctx, msg)
}
