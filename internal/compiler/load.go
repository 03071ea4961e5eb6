package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadResult contains the query definitions loaded from CUE files.
type LoadResult struct {
	Queries   []QueryDef
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Lookup returns the query definition with the given name.
func (r *LoadResult) Lookup(name string) (QueryDef, bool) {
	for _, def := range r.Queries {
		if def.Name == name {
			return def, true
		}
	}
	return QueryDef{}, false
}

// LoadError represents an error that occurred while loading CUE files,
// before any query could be compiled.
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadQueries loads and compiles the `query` definitions under path, which
// may be a directory (one CUE package) or a single .cue file.
//
// A *LoadError means nothing could be compiled; otherwise the result holds
// every query that compiled and errs holds one entry per query that did not.
func LoadQueries(path string) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, []error{&LoadError{Path: path, Message: "path not found", Err: err}}
	}

	dir, args := path, []string{"."}
	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Path: path, Message: "error scanning directory", Err: err}}
		}
	} else {
		dir, args = filepath.Dir(path), []string{filepath.Base(path)}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Path: path, Message: "no CUE files found"}}
	}

	// Load CUE instances
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Path: path, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Path: path, Message: "loading CUE files", Err: formatCUEError(inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Path: path, Message: "building CUE value", Err: formatCUEError(err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(files),
	}
	var errs []error
	result.Queries, errs = CompileQueries(value)
	if len(result.Queries) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Path: path, Message: "no queries found"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
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
	return files, err
}
