package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/build"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// FindCUEFiles walks dir and returns every .cue file path, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// LoadDir builds every .cue file under dir, subdirectories included, into
// one value. Files need no package clause.
func LoadDir(dir string) (cue.Value, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE files in %s", dir)
	}
	return LoadFiles(files...)
}

// LoadFiles builds the given files into one value. Files of one directory
// form a single instance and must share a package clause (or have none);
// the instances of different directories are unified.
func LoadFiles(files ...string) (cue.Value, error) {
	if len(files) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE files given")
	}

	var groups [][]string
	index := make(map[string]int)
	for _, f := range files {
		dir := filepath.Dir(f)
		i, ok := index[dir]
		if !ok {
			i = len(groups)
			index[dir] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], f)
	}

	ctx := cuecontext.New()
	var value cue.Value
	for i, group := range groups {
		v, err := buildValue(ctx, load.Instances(group, &load.Config{}))
		if err != nil {
			return cue.Value{}, err
		}
		if i == 0 {
			value = v
			continue
		}
		value = value.Unify(v)
	}
	if err := value.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("building CUE value: %w", err)
	}
	return value, nil
}

func buildValue(ctx *cue.Context, instances []*build.Instance) (cue.Value, error) {
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("building CUE value: %w", err)
	}
	return value, nil
}
