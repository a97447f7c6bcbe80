package driver

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"moonc/internal/observ"
)

// FileResult is the outcome of one file in a batch.
type FileResult struct {
	Path     string
	Artifact *Artifact
	// Cached is set when the artifact came from the disk cache.
	Cached bool
	Timing *observ.Report
}

// BatchOptions configure CompileFiles.
type BatchOptions struct {
	Options
	// Jobs bounds the number of chunks compiled at once; <=0 means GOMAXPROCS.
	Jobs  int
	Cache *DiskCache
	// Timings records a per-file phase report.
	Timings bool
}

// ListChunks returns every chunk file under dir, sorted.
func ListChunks(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ChunkExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// CompileFiles compiles every file concurrently. Results keep the order of
// paths. The first failure cancels the rest of the batch.
func CompileFiles(ctx context.Context, paths []string, opts BatchOptions) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	if len(paths) == 0 {
		return results, nil
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res, err := compileFile(gctx, path, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func compileFile(ctx context.Context, path string, opts BatchOptions) (res FileResult, err error) {
	notify := func(ev PhaseEvent) {}
	if opts.Observer != nil {
		notify = func(ev PhaseEvent) {
			ev.File = path
			opts.Observer(ev)
		}
	}
	defer func() {
		switch {
		case err != nil:
			notify(PhaseEvent{Status: FileFailed})
		case res.Cached:
			notify(PhaseEvent{Chunk: res.Artifact.Name, Status: FileCached})
		default:
			notify(PhaseEvent{Chunk: res.Artifact.Name, Status: FileDone})
		}
	}()

	if err := ctx.Err(); err != nil {
		return FileResult{}, err
	}
	data, err := readInput(path)
	if err != nil {
		return FileResult{}, err
	}

	key := CacheKey(data, opts.Config)
	if art, ok, err := opts.Cache.Get(key); err != nil {
		return FileResult{}, fmt.Errorf("%s: cache: %w", path, err)
	} else if ok {
		return FileResult{Path: path, Artifact: art, Cached: true}, nil
	}

	chunk, err := DecodeChunk(data)
	if err != nil {
		return FileResult{}, fmt.Errorf("%s: %w", path, err)
	}
	if chunk.Name == "" {
		chunk.Name = strings.TrimSuffix(filepath.Base(path), ChunkExt)
	}

	local := opts.Options
	local.Observer = notify
	if opts.Timings {
		local.Timer = observ.NewTimer()
	}
	compiled, err := Compile(ctx, chunk, local)
	if err != nil {
		return FileResult{}, err
	}
	art := ToArtifact(compiled, opts.Config)
	if err := opts.Cache.Put(key, art); err != nil {
		return FileResult{}, fmt.Errorf("%s: cache: %w", path, err)
	}
	res = FileResult{Path: path, Artifact: art}
	if local.Timer != nil {
		rep := local.Timer.Report()
		res.Timing = &rep
	}
	return res, nil
}
