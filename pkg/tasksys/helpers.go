package tasksys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
)

type logKey struct{}

// WithLogger attaches the given logger to the context. Every entry point of
// this package expects a logger to be present.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

func log(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(logKey{})
	if logger == nil {
		panic("Logger is missing in context!")
	}

	return logger.(*zerolog.Logger)
}

// normalizePath joins the given path elements relative to the declaring
// script. A leading "//" roots the path at the project root, a single leading
// "/" at the current volume.
func normalizePath(ctx *scriptCtx, pathList ...string) string {
	result := filepath.Dir(ctx.filepath)

	for _, path := range pathList {
		if strings.HasPrefix(path, "//") {
			result = filepath.Join(ctx.projectRoot, path[2:])
		} else if strings.HasPrefix(path, "/") {
			result = filepath.Join(filepath.VolumeName(result), path)
		} else if !filepath.IsAbs(path) {
			result = filepath.Join(result, path)
		} else {
			result = path
		}
	}

	return filepath.Clean(result)
}

// simplifyPath renders paths below the project root as "//..." for log output.
func simplifyPath(ctx *scriptCtx, path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	if strings.HasPrefix(absPath, ctx.projectRoot) {
		return "//" + absPath[len(ctx.projectRoot)+1:]
	}
	return path
}

func getEnvVars(ctx *scriptCtx) []string {
	osEnv := os.Environ()
	shellEnv := make([]string, 0, len(osEnv)+len(ctx.envOverrides))
	for _, item := range osEnv {
		parts := strings.SplitN(item, "=", 2)
		if runtime.GOOS == "windows" {
			parts[0] = strings.ToUpper(parts[0])
		}

		// skip overridden entries to avoid conflicts
		if _, present := ctx.envOverrides[parts[0]]; !present {
			shellEnv = append(shellEnv, item)
		}
	}

	for k, v := range ctx.envOverrides {
		shellEnv = append(shellEnv, fmt.Sprintf("%s=%s", k, v))
	}

	return shellEnv
}

func toStarlark(thread *starlark.Thread, value any) (starlark.Value, error) {
	// handle a few simple and common cases first
	switch value := value.(type) {
	case string:
		return starlark.String(value), nil
	case int:
		return starlark.MakeInt(value), nil
	case bool:
		return starlark.Bool(value), nil
	case float32:
		return starlark.Float(value), nil
	case float64:
		return starlark.Float(value), nil
	case []string:
		items := make(starlark.Tuple, len(value))
		for idx, raw := range value {
			items[idx] = starlark.String(raw)
		}

		return items, nil
	case map[string]string:
		dict := starlark.NewDict(len(value))
		for k, v := range value {
			err := dict.SetKey(starlark.String(k), starlark.String(v))
			if err != nil {
				return nil, err
			}
		}

		return dict, nil
	}

	refValue := reflect.ValueOf(value)
	if !refValue.IsValid() || refValue.IsNil() {
		return starlark.None, nil
	}

	var err error
	switch refValue.Kind() {
	case reflect.Slice, reflect.Array:
		tuple := make(starlark.Tuple, refValue.Len())
		for idx := 0; idx < refValue.Len(); idx++ {
			tuple[idx], err = toStarlark(thread, refValue.Index(idx).Interface())
			if err != nil {
				return nil, err
			}
		}

		return tuple, nil
	case reflect.Map:
		dict := starlark.NewDict(refValue.Len())
		iter := refValue.MapRange()
		for iter.Next() {
			key, err := toStarlark(thread, iter.Key().Interface())
			if err != nil {
				return nil, err
			}

			item, err := toStarlark(thread, iter.Value().Interface())
			if err != nil {
				return nil, err
			}

			err = dict.SetKey(key, item)
			if err != nil {
				return nil, err
			}
		}

		return dict, nil
	}

	return nil, eris.Errorf("encountered unsupported type %v", refValue.Kind())
}

// quoteShellWord makes a string safe to embed in a generated shell command.
func quoteShellWord(word string) string {
	if word == "" {
		return "''"
	}

	if !strings.ContainsAny(word, " \t'\"$&|;<>()*?[]#~%{}\\") {
		return word
	}

	return "'" + strings.ReplaceAll(word, "'", `'\''`) + "'"
}
