// Package tasksys implements a small task runner built on Starlark for the
// task definitions and mvdan.cc/sh for the shell runtime. Tasks wrap external
// commands (most importantly the lab app's bundled Python interpreter and the
// Python code-quality tools) and propagate their exit status unchanged.
package tasksys
