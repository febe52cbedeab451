// Package scan implements the bulk importer: a parallel directory walker
// that discovers node documents on disk and feeds them to a caller-supplied
// write function. Directly adapted from the teacher's FileWalker
// (core/filewalker.go), dropping language detection (not a concern of this
// domain) and keeping the worker-pool traversal and doublestar glob
// matching.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	errPathRequired = errors.New("scan: path is required")
	errNotADirectory = errors.New("scan: path is not a directory")
)

// Scope bounds one import run: the root directory, include/exclude glob
// patterns, and traversal limits.
type Scope struct {
	Path           string
	Include        []string // defaults to ["**/*.md"] when empty
	Exclude        []string
	MaxDepth       int // 0 means unlimited
	FollowSymlinks bool
}

// Result is one discovered file, or a per-file error that doesn't abort the
// walk.
type Result struct {
	Path string
	Info fs.FileInfo
	Name string // node name: the file's base name without extension
	Err  error
}

// Walker performs parallel directory traversal with glob-pattern matching.
type Walker struct {
	workers    int
	bufferSize int
}

// NewWalker returns a walker sized for I/O-bound traversal, 2x CPU cores.
func NewWalker() *Walker {
	return &Walker{
		workers:    runtime.NumCPU() * 2,
		bufferSize: 1000,
	}
}

// Walk traverses scope.Path, emitting one Result per matched file on the
// returned channel. The channel closes when traversal completes or ctx is
// canceled.
func (w *Walker) Walk(ctx context.Context, scope Scope) (<-chan Result, error) {
	if scope.Path == "" {
		return nil, errPathRequired
	}
	info, err := os.Stat(scope.Path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errNotADirectory
	}
	if len(scope.Include) == 0 {
		scope.Include = []string{"**/*.md"}
	}

	results := make(chan Result, w.bufferSize)
	paths := make(chan string, w.bufferSize)

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go w.worker(ctx, paths, results, &wg)
	}

	go func() {
		defer close(paths)
		var visited map[string]struct{}
		if scope.FollowSymlinks {
			visited = make(map[string]struct{})
		}
		w.scanDirectory(ctx, scope.Path, scope, paths, 0, visited)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

func (w *Walker) worker(ctx context.Context, paths <-chan string, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-paths:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case results <- w.processFile(path):
			}
		}
	}
}

func (w *Walker) processFile(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return Result{Path: path, Info: info, Name: name}
}

func (w *Walker) scanDirectory(
	ctx context.Context,
	dirPath string,
	scope Scope,
	paths chan<- string,
	depth int,
	visited map[string]struct{},
) {
	select {
	case <-ctx.Done():
		return
	default:
	}
	if scope.MaxDepth > 0 && depth > scope.MaxDepth {
		return
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fullPath := filepath.Join(dirPath, entry.Name())
		if matchAny(fullPath, scope.Exclude) {
			continue
		}

		if entry.Type()&os.ModeSymlink != 0 && scope.FollowSymlinks {
			resolved, err := filepath.EvalSymlinks(fullPath)
			if err != nil || resolved == "" {
				continue
			}
			info, err := os.Stat(resolved)
			if err != nil || !info.IsDir() {
				continue
			}
			if visited != nil {
				if _, seen := visited[resolved]; seen {
					continue
				}
				visited[resolved] = struct{}{}
			}
			w.scanDirectory(ctx, fullPath, scope, paths, depth+1, visited)
			continue
		}

		if entry.IsDir() {
			w.scanDirectory(ctx, fullPath, scope, paths, depth+1, visited)
			continue
		}

		if matchAny(fullPath, scope.Include) {
			select {
			case <-ctx.Done():
				return
			case paths <- fullPath:
			}
		}
	}
}

func matchAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.PathMatch(pattern, path); err == nil && matched {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if matched, err := doublestar.PathMatch(pattern, filepath.Base(path)); err == nil && matched {
				return true
			}
		}
	}
	return false
}

// WriteFunc is the node store's write entry point, invoked once per
// discovered file.
type WriteFunc func(name, content string) error

// Import walks scope and calls write for every matched file's (name,
// content), stopping at the first error and returning how many files were
// successfully imported before it.
func Import(ctx context.Context, w *Walker, scope Scope, write WriteFunc) (int, error) {
	results, err := w.Walk(ctx, scope)
	if err != nil {
		return 0, err
	}

	count := 0
	for res := range results {
		if res.Err != nil {
			return count, res.Err
		}
		content, err := os.ReadFile(res.Path)
		if err != nil {
			return count, err
		}
		if err := write(res.Name, string(content)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
