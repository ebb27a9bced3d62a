package tool_grepfiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// Tool identity constants.
const (
	Group = "file"
	Name  = "grep_files"
)

const grepFilesPrompt = `Searches file contents with a regular expression.

Usage:
- Supports full Go regex syntax (e.g. "log.*Error", "func\s+\w+").
- Filter candidate files with file_pattern (glob on the file name, e.g. "*.go").
- Matching lines are returned with their line numbers and optional surrounding context.
- Binary files are skipped.`

// GrepFilesInput represents the parameters for grep_files.
type GrepFilesInput struct {
	Pattern       string `json:"pattern" required:"true" description:"The regex pattern to search for"`
	Path          string `json:"path,omitempty" description:"The directory to search in (defaults to current directory)"`
	FilePattern   string `json:"file_pattern,omitempty" description:"File name glob to filter files"`
	CaseSensitive bool   `json:"case_sensitive,omitempty" description:"Case sensitive search (default false)"`
	ContextLines  int    `json:"context_lines,omitempty" description:"Number of context lines around matches"`
	MaxResults    int    `json:"max_results,omitempty" description:"Maximum number of results (default 100)"`
}

// GrepMatch represents a single match.
type GrepMatch struct {
	File    string   `json:"file" description:"The file path containing the match"`
	Line    int      `json:"line" description:"The line number of the match"`
	Content string   `json:"content" description:"The content of the matching line"`
	Match   string   `json:"match" description:"The matched text"`
	Context []string `json:"context,omitempty" description:"Lines around the match"`
}

// GrepFilesOutput represents the response from grep_files.
type GrepFilesOutput struct {
	Pattern      string      `json:"pattern" description:"The regex pattern used"`
	Path         string      `json:"path" description:"The directory searched"`
	Matches      []GrepMatch `json:"matches" description:"All matches found"`
	TotalMatches int         `json:"total_matches" description:"Number of matches returned"`
	Truncated    bool        `json:"truncated" description:"Whether results were cut at max_results"`
}

// Tool returns the grep_files tool definition.
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Group, Name, grepFilesPrompt, makeGrepFilesHandler(fs))
}

func makeGrepFilesHandler(fs afero.Fs) func(ctx context.Context, input GrepFilesInput) (GrepFilesOutput, error) {
	return func(ctx context.Context, input GrepFilesInput) (GrepFilesOutput, error) {
		logger := toolsutil.GetLogger()

		if err := ctx.Err(); err != nil {
			return GrepFilesOutput{}, err
		}

		if input.Path == "" {
			input.Path = "."
		}
		if input.MaxResults <= 0 {
			input.MaxResults = 100
		}
		if input.ContextLines < 0 {
			input.ContextLines = 0
		}
		if !toolsutil.IsPathSafe(input.Path) {
			logger.Error("unsafe path rejected", "path", input.Path)
			return GrepFilesOutput{}, fmt.Errorf("%w: %s", toolsutil.ErrUnsafePath, input.Path)
		}

		flags := "(?mi)"
		if input.CaseSensitive {
			flags = "(?m)"
		}
		regex, err := regexp.Compile(flags + input.Pattern)
		if err != nil {
			logger.Error("invalid regex pattern", "pattern", input.Pattern, "error", err)
			return GrepFilesOutput{}, fmt.Errorf("invalid regex pattern: %v", err)
		}

		logger.Info("grep files", "pattern", input.Pattern, "path", input.Path)

		matches := make([]GrepMatch, 0)
		truncated := false

		err = afero.Walk(fs, input.Path, func(path string, info os.FileInfo, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil || info.IsDir() {
				return nil
			}
			if len(matches) >= input.MaxResults {
				truncated = true
				return filepath.SkipDir
			}
			if input.FilePattern != "" {
				ok, matchErr := filepath.Match(input.FilePattern, info.Name())
				if matchErr != nil || !ok {
					return nil
				}
			}
			if toolsutil.ValidateFileSize(info.Size()) != nil {
				return nil
			}
			content, readErr := afero.ReadFile(fs, path)
			if readErr != nil || !toolsutil.IsTextFile(content) {
				return nil
			}

			lines := strings.Split(string(content), "\n")
			for i, line := range lines {
				if len(matches) >= input.MaxResults {
					truncated = true
					break
				}
				if regex.MatchString(line) {
					m := GrepMatch{
						File:    path,
						Line:    i + 1,
						Content: line,
						Match:   regex.FindString(line),
					}
					if input.ContextLines > 0 {
						m.Context = contextLines(lines, i, input.ContextLines)
					}
					matches = append(matches, m)
				}
			}
			return nil
		})
		if err != nil {
			logger.Error("grep failed", "error", err)
			return GrepFilesOutput{}, fmt.Errorf("grep failed: %w", err)
		}

		logger.Info("grep completed", "pattern", input.Pattern, "matches", len(matches), "truncated", truncated)

		return GrepFilesOutput{
			Pattern:      input.Pattern,
			Path:         input.Path,
			Matches:      matches,
			TotalMatches: len(matches),
			Truncated:    truncated,
		}, nil
	}
}

func contextLines(lines []string, index, n int) []string {
	start := index - n
	if start < 0 {
		start = 0
	}
	end := index + n + 1
	if end > len(lines) {
		end = len(lines)
	}
	return lines[start:end]
}
