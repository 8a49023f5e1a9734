package tasksys

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellTask(short, base string, cmds ...string) *Task {
	task := &Task{
		Short: short,
		Desc:  short,
		Base:  base,
		Env:   map[string]string{},
	}

	for idx, cmd := range cmds {
		task.Cmds = append(task.Cmds, ShellCmd{TaskName: short, Content: cmd, Index: idx})
	}

	return task
}

func TestRunTaskExecutesCommands(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{
		"write": shellTask("write", dir, "echo done > out.txt"),
	}

	err := RunTask(testCtx(), dir, "write", tasks, false, false)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(content))
}

func TestRunTaskDryRun(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{
		"write": shellTask("write", dir, "echo hello"),
	}

	buffer := strings.Builder{}
	logger := zerolog.New(&buffer)
	ctx := WithLogger(context.Background(), &logger)

	err := RunTask(ctx, dir, "write", tasks, true, false)
	require.NoError(t, err)

	// the command is printed unchanged but nothing runs
	assert.Contains(t, buffer.String(), `"message":"echo hello"`)
	assert.Contains(t, buffer.String(), `"command":true`)
	assert.NoFileExists(t, filepath.Join(dir, "out.txt"))
}

func TestRunTaskDependencyOrder(t *testing.T) {
	dir := t.TempDir()
	main := shellTask("main", dir, "echo main >> seq.txt")
	main.Deps = []string{"dep"}

	tasks := TaskList{
		"main": main,
		"dep":  shellTask("dep", dir, "echo dep >> seq.txt"),
	}

	err := RunTask(testCtx(), dir, "main", tasks, false, false)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "seq.txt"))
	require.NoError(t, err)
	assert.Equal(t, "dep\nmain\n", string(content))
}

func TestRunTaskMissingDependency(t *testing.T) {
	dir := t.TempDir()
	main := shellTask("main", dir, "echo main")
	main.Deps = []string{"ghost"}

	err := RunTask(testCtx(), dir, "main", TaskList{"main": main}, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRunTaskRecursiveDependency(t *testing.T) {
	dir := t.TempDir()
	a := shellTask("a", dir, "echo a")
	a.Deps = []string{"b"}
	b := shellTask("b", dir, "echo b")
	b.Deps = []string{"a"}

	err := RunTask(testCtx(), dir, "a", TaskList{"a": a, "b": b}, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursively")
}

func TestRunTaskExitStatus(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{
		"fail": shellTask("fail", dir, "exit 7"),
	}

	err := RunTask(testCtx(), dir, "fail", tasks, false, false)
	require.Error(t, err)

	var exitErr ExitError
	require.True(t, eris.As(err, &exitErr), "expected an ExitError, got %v", err)
	assert.Equal(t, uint8(7), exitErr.Code)
	assert.Equal(t, "fail", exitErr.Task)
}

func TestRunTaskStopsAfterFailedCommand(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{
		"fail": shellTask("fail", dir, "exit 1", "echo late > late.txt"),
	}

	err := RunTask(testCtx(), dir, "fail", tasks, false, false)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "late.txt"))
}

func TestRunTaskSkipIfExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0600))

	task := shellTask("gen", dir, "echo out > out.txt")
	task.SkipIfExists = []string{"marker.txt"}
	tasks := TaskList{"gen": task}

	err := RunTask(testCtx(), dir, "gen", tasks, false, false)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.txt"))
}

func TestRunTaskForceOverridesSkip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0600))

	task := shellTask("gen", dir, "echo out > out.txt")
	task.SkipIfExists = []string{"marker.txt"}
	tasks := TaskList{"gen": task}

	err := RunTask(testCtx(), dir, "gen", tasks, false, true)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "out.txt"))
}

func TestRunTaskFreshOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	output := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(input, []byte("in"), 0600))
	require.NoError(t, os.WriteFile(output, []byte("out"), 0600))

	// make the input older than the output
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(input, past, past))

	task := shellTask("gen", dir, "echo ran > ran.txt")
	task.Inputs = []string{"in.txt"}
	task.Outputs = []string{"out.txt"}
	tasks := TaskList{"gen": task}

	err := RunTask(testCtx(), dir, "gen", tasks, false, false)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "ran.txt"))
}

func TestRunTaskStaleOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	output := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(input, []byte("in"), 0600))
	require.NoError(t, os.WriteFile(output, []byte("out"), 0600))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(output, past, past))

	task := shellTask("gen", dir, "echo ran > ran.txt")
	task.Inputs = []string{"in.txt"}
	task.Outputs = []string{"out.txt"}
	tasks := TaskList{"gen": task}

	err := RunTask(testCtx(), dir, "gen", tasks, false, false)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "ran.txt"))
}

func TestRunTaskUnknownTask(t *testing.T) {
	err := RunTask(testCtx(), t.TempDir(), "nope", TaskList{}, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunTaskEnv(t *testing.T) {
	dir := t.TempDir()
	task := shellTask("env", dir, "echo $GREETING > out.txt")
	task.Env = map[string]string{"GREETING": "hi"}
	tasks := TaskList{"env": task}

	err := RunTask(testCtx(), dir, "env", tasks, false, false)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(content))
}
