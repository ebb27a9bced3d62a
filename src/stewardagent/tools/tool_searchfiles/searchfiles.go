package tool_searchfiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// Tool identity constants.
const (
	Group = "file"
	Name  = "search_files"
)

const searchFilesPrompt = `Fast file name matching that works with any codebase size.

Usage:
- Supports glob patterns like "*.go" or "src/**/*.ts".
- Returns matching file paths sorted by modification time, newest first.
- Use this tool to find files by name; use grep_files to search contents.`

// SearchFilesInput represents the parameters for search_files.
type SearchFilesInput struct {
	Pattern    string `json:"pattern" required:"true" description:"Glob pattern to match file paths against"`
	Path       string `json:"path,omitempty" description:"The directory to search in (defaults to current directory)"`
	MaxResults int    `json:"max_results,omitempty" description:"Maximum number of results (default 200)"`
}

// SearchFilesOutput represents the response from search_files.
type SearchFilesOutput struct {
	Pattern   string   `json:"pattern" description:"The glob pattern used"`
	Path      string   `json:"path" description:"The directory searched"`
	Files     []string `json:"files" description:"Matching file paths, newest first"`
	Count     int      `json:"count" description:"Number of matches returned"`
	Truncated bool     `json:"truncated" description:"Whether results were cut at max_results"`
}

// Tool returns the search_files tool definition.
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Group, Name, searchFilesPrompt, makeSearchFilesHandler(fs))
}

func makeSearchFilesHandler(fs afero.Fs) func(ctx context.Context, input SearchFilesInput) (SearchFilesOutput, error) {
	return func(ctx context.Context, input SearchFilesInput) (SearchFilesOutput, error) {
		logger := toolsutil.GetLogger()

		if err := ctx.Err(); err != nil {
			return SearchFilesOutput{}, err
		}

		if input.Path == "" {
			input.Path = "."
		}
		if input.MaxResults <= 0 {
			input.MaxResults = 200
		}
		if !toolsutil.IsPathSafe(input.Path) {
			logger.Error("unsafe path rejected", "path", input.Path)
			return SearchFilesOutput{}, fmt.Errorf("%w: %s", toolsutil.ErrUnsafePath, input.Path)
		}

		logger.Info("searching files", "pattern", input.Pattern, "path", input.Path)

		type hit struct {
			path    string
			modTime time.Time
		}
		var hits []hit

		err := afero.Walk(fs, input.Path, func(path string, info os.FileInfo, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil || info.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(input.Path, path)
			if relErr != nil {
				rel = path
			}
			if matchGlob(input.Pattern, rel, info.Name()) {
				hits = append(hits, hit{path: path, modTime: info.ModTime()})
			}
			return nil
		})
		if err != nil {
			logger.Error("search failed", "error", err)
			return SearchFilesOutput{}, fmt.Errorf("search failed: %w", err)
		}

		sort.Slice(hits, func(i, j int) bool { return hits[i].modTime.After(hits[j].modTime) })

		truncated := len(hits) > input.MaxResults
		if truncated {
			hits = hits[:input.MaxResults]
		}
		files := make([]string, len(hits))
		for i, h := range hits {
			files[i] = h.path
		}

		logger.Info("search completed", "pattern", input.Pattern, "matches", len(files), "truncated", truncated)

		return SearchFilesOutput{
			Pattern:   input.Pattern,
			Path:      input.Path,
			Files:     files,
			Count:     len(files),
			Truncated: truncated,
		}, nil
	}
}

// matchGlob matches a glob against a relative path. A "**/" prefix matches
// at any depth; a pattern without a separator matches the base name.
func matchGlob(pattern, relPath, base string) bool {
	relPath = filepath.ToSlash(relPath)
	if !strings.Contains(pattern, "/") {
		ok, err := filepath.Match(pattern, base)
		return err == nil && ok
	}
	if rest, found := strings.CutPrefix(pattern, "**/"); found {
		if ok, err := filepath.Match(rest, relPath); err == nil && ok {
			return true
		}
		// Also try the suffix at every depth.
		parts := strings.Split(relPath, "/")
		for i := 1; i < len(parts); i++ {
			if ok, err := filepath.Match(rest, strings.Join(parts[i:], "/")); err == nil && ok {
				return true
			}
		}
		return false
	}
	if strings.Contains(pattern, "/**/") {
		idx := strings.Index(pattern, "/**/")
		prefix, suffix := pattern[:idx], pattern[idx+4:]
		if !strings.HasPrefix(relPath, prefix+"/") {
			return false
		}
		return matchGlob("**/"+suffix, strings.TrimPrefix(relPath, prefix+"/"), base)
	}
	ok, err := filepath.Match(pattern, relPath)
	return err == nil && ok
}
