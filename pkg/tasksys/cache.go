package tasksys

import (
	"encoding/gob"
	"os"
)

func init() {
	gob.Register(TaskList{})
	gob.Register(Task{})
	gob.Register(ShellCmd{})
	gob.Register(TaskRef{})
}

// WriteCache stores the result of a configure run so later invocations can
// skip the script evaluation.
func WriteCache(file string, options map[string]string, list TaskList) error {
	handle, err := os.Create(file)
	if err != nil {
		return err
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	err = encoder.Encode(options)
	if err != nil {
		return err
	}

	return encoder.Encode(list)
}

// ReadCache loads a task list previously written by WriteCache.
func ReadCache(file string) (map[string]string, TaskList, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var options map[string]string
	err = decoder.Decode(&options)
	if err != nil {
		return nil, nil, err
	}

	var result TaskList
	err = decoder.Decode(&result)
	if err != nil {
		return options, nil, err
	}

	return options, result, nil
}

// CacheIsFresh reports whether the cache file exists and is newer than the
// task script it was built from.
func CacheIsFresh(cacheFile, scriptFile string) bool {
	cacheInfo, err := os.Stat(cacheFile)
	if err != nil {
		return false
	}

	scriptInfo, err := os.Stat(scriptFile)
	if err != nil {
		return false
	}

	return cacheInfo.ModTime().After(scriptInfo.ModTime())
}
