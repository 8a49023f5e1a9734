package tasksys

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
	"mvdan.cc/sh/v3/syntax"
)

// Command is one entry in a task's cmds list: either a shell snippet or a
// reference to another task.
type Command interface {
	AsTask() *Task
	ShellStmts(parser *syntax.Parser) ([]*syntax.Stmt, error)
}

// ShellCmd is a shell snippet belonging to a task.
type ShellCmd struct {
	TaskName string
	Content  string
	Index    int
}

func (c ShellCmd) AsTask() *Task { return nil }

func (c ShellCmd) ShellStmts(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	result, err := parser.Parse(strings.NewReader(c.Content), fmt.Sprintf("%s:%d", c.TaskName, c.Index))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", c.Content)
	}

	return result.Stmts, nil
}

// TaskRef points to another task that should run in place of a shell command.
type TaskRef struct {
	Task *Task
}

func (r TaskRef) AsTask() *Task { return r.Task }

func (r TaskRef) ShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) { return nil, nil }

// Task contains the processed values passed to task() by the task script.
type Task struct {
	Env          map[string]string
	Short        string
	Desc         string
	Base         string
	Inputs       []string
	Deps         []string
	SkipIfExists []string
	Outputs      []string
	Cmds         []Command
	Hidden       bool
}

// TaskList maps short names to each visible task.
type TaskList map[string]*Task

// ScriptOption is an overridable value declared with option() in a task script.
type ScriptOption struct {
	DefaultValue starlark.String
	Help         string
}

func (o ScriptOption) Default() string {
	return o.DefaultValue.GoString()
}

// ExitError carries the exit status of a failed external command. The CLI
// exits with this code so that the invoked tool's status is visible unchanged.
type ExitError struct {
	Code uint8
	Task string
}

func (e ExitError) Error() string {
	return fmt.Sprintf("task %s: command exited with status %d", e.Task, e.Code)
}

// Implement starlark.Value for *Task so tasks can be referenced from cmds
// lists and deps.

func (t *Task) String() string {
	return fmt.Sprintf("<Task %s: %s>", t.Short, t.Desc)
}

func (t *Task) Type() string { return "task" }

// Freeze doesn't do anything since tasks are immutable anyway
func (t *Task) Freeze() {}

func (t *Task) Truth() starlark.Bool { return starlark.True }

func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("task is not a hashable type")
}

// Path is a filesystem path value inside task scripts. It behaves like a
// string but is normalized relative to the declaring script.
type Path string

func (p Path) String() string { return starlark.String(p).String() }

func (p Path) Type() string { return "path" }

func (p Path) Freeze() {}

func (p Path) Truth() starlark.Bool { return p != "" }

func (p Path) Hash() (uint32, error) { return starlark.String(p).Hash() }

func (p Path) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(Path)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}

func (p Path) Index(i int) starlark.Value { return starlark.String(p[i]) }

func (p Path) Len() int { return len(p) }

func (p Path) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}
