package sched

import (
	"context"
	"time"
)

// Command is the unit the scheduler executes: an asynchronous operation that
// ends in success or failure. Settlement adapters wrap remote trade calls
// (retry, timeout) before exposing them as Commands.
type Command interface {
	Execute(ctx context.Context) error
}

// CommandFunc adapts a plain function to the Command interface.
type CommandFunc func(ctx context.Context) error

func (f CommandFunc) Execute(ctx context.Context) error { return f(ctx) }

// Task is one scheduled command. IDs are caller-chosen and must be unique
// among outstanding tasks; reusing a completed id resolves instantly via the
// history. After names a task that must complete successfully before this
// one becomes ready. Delay postpones the start once the task holds a slot.
type Task struct {
	ID      string
	Command Command
	After   string
	Delay   time.Duration
}
