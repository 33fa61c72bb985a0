package medium

import "context"

// Disabled is a medium that refuses every operation, standing in for
// storage the user or platform has turned off.
type Disabled struct{}

func (Disabled) Get(context.Context, string) ([]byte, error)    { return nil, ErrUnavailable }
func (Disabled) Set(context.Context, string, []byte) error      { return ErrUnavailable }
func (Disabled) Delete(context.Context, string) error           { return ErrUnavailable }
func (Disabled) Keys(context.Context, string) ([]string, error) { return nil, ErrUnavailable }
func (Disabled) Ping(context.Context) error                     { return ErrUnavailable }
func (Disabled) Close() error                                   { return nil }
