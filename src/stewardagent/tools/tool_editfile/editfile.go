package tool_editfile

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/spf13/afero"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// Tool identity constants.
const (
	Group = "file"
	Name  = "edit_file"
)

const editFilePrompt = `Performs search and replace edits in a file.

Usage:
- search is matched literally by default; set regex to true for regular expression matching.
- Only the first occurrence is replaced unless replace_all is set.
- When search is not found the tool reports a warning with guidance instead of failing; nothing is written in that case.
- Prefer editing existing files over writing new ones.`

// EditFileInput represents the parameters for edit_file.
type EditFileInput struct {
	Path       string `json:"path" required:"true" description:"The file path to edit"`
	Search     string `json:"search" required:"true" description:"The content to find"`
	Replace    string `json:"replace" description:"The content to replace it with"`
	Regex      bool   `json:"regex,omitempty" description:"Treat search as a regular expression"`
	ReplaceAll bool   `json:"replace_all,omitempty" description:"Replace every occurrence instead of the first"`
}

// EditFileOutput represents the response from edit_file.
type EditFileOutput struct {
	Path         string `json:"path" description:"The file path that was edited"`
	Replacements int    `json:"replacements" description:"Number of replacements made"`
	OldSize      int    `json:"old_size" description:"File size before the edit"`
	NewSize      int    `json:"new_size" description:"File size after the edit"`
	Warning      string `json:"warning,omitempty" description:"Set when no edit was performed"`
	Diff         string `json:"diff,omitempty" description:"Unified diff of the change"`
}

// Tool returns the edit_file tool definition.
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Group, Name, editFilePrompt, makeEditFileHandler(fs))
}

func makeEditFileHandler(fs afero.Fs) func(ctx context.Context, input EditFileInput) (EditFileOutput, error) {
	return func(ctx context.Context, input EditFileInput) (EditFileOutput, error) {
		logger := toolsutil.GetLogger()

		if err := ctx.Err(); err != nil {
			return EditFileOutput{}, err
		}
		if !toolsutil.IsPathSafe(input.Path) {
			logger.Error("unsafe path rejected", "path", input.Path)
			return EditFileOutput{}, fmt.Errorf("%w: %s", toolsutil.ErrUnsafePath, input.Path)
		}

		// A search term equal to its replacement can never change the file;
		// short-circuit before any disk access.
		if input.Search == input.Replace {
			return EditFileOutput{
				Path:    input.Path,
				Warning: "search and replacement are identical; no edit performed",
			}, nil
		}

		content, err := afero.ReadFile(fs, input.Path)
		if err != nil {
			logger.Error("failed to read file", "path", input.Path, "error", err)
			return EditFileOutput{}, fmt.Errorf("failed to read file: %v", err)
		}
		current := string(content)

		var updated string
		var replacements int
		if input.Regex {
			updated, replacements, err = applyRegex(current, input.Search, input.Replace, input.ReplaceAll)
			if err != nil {
				return EditFileOutput{}, err
			}
		} else {
			updated, replacements = applyLiteral(current, input.Search, input.Replace, input.ReplaceAll)
		}

		if replacements == 0 {
			logger.Warn("search content not found", "path", input.Path)
			return EditFileOutput{
				Path:    input.Path,
				OldSize: len(current),
				NewSize: len(current),
				Warning: "search content not found in file; no edit performed. " +
					"Re-read the file and make sure search matches the current content exactly, including indentation",
			}, nil
		}

		if err := ctx.Err(); err != nil {
			return EditFileOutput{}, err
		}
		if err := afero.WriteFile(fs, input.Path, []byte(updated), 0644); err != nil {
			logger.Error("failed to write file", "path", input.Path, "error", err)
			return EditFileOutput{}, fmt.Errorf("failed to write file: %v", err)
		}

		logger.Info("file edited", "path", input.Path, "replacements", replacements)

		return EditFileOutput{
			Path:         input.Path,
			Replacements: replacements,
			OldSize:      len(current),
			NewSize:      len(updated),
			Diff:         udiff.Unified("a/"+input.Path, "b/"+input.Path, current, updated),
		}, nil
	}
}

// applyLiteral performs a literal replacement. When the raw search term is
// absent, both terms are run through the escape sanitizer and matching is
// retried, since models frequently over-escape string content.
func applyLiteral(content, search, replace string, all bool) (string, int) {
	if !strings.Contains(content, search) {
		search = sanitizeEscapes(search)
		replace = sanitizeEscapes(replace)
		if !strings.Contains(content, search) {
			return content, 0
		}
	}
	if all {
		count := strings.Count(content, search)
		return strings.ReplaceAll(content, search, replace), count
	}
	return strings.Replace(content, search, replace, 1), 1
}

func applyRegex(content, pattern, replace string, all bool) (string, int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", 0, fmt.Errorf("invalid regular expression: %v", err)
	}
	matches := re.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return content, 0, nil
	}
	if all {
		return re.ReplaceAllString(content, replace), len(matches), nil
	}
	loc := matches[0]
	replaced := re.ReplaceAllString(content[loc[0]:loc[1]], replace)
	return content[:loc[0]] + replaced + content[loc[1]:], 1, nil
}

var doubleEscaped = []string{`\\n`, `\\r`, `\\t`, `\\"`, `\\'`}

var escapeReplacer = strings.NewReplacer(
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\"`, `"`,
	`\'`, `'`,
)

// sanitizeEscapes collapses a small whitelisted set of backslash escapes.
// Input containing doubly-escaped sequences is left alone: those indicate
// the literal backslashes are intentional.
func sanitizeEscapes(s string) string {
	for _, seq := range doubleEscaped {
		if strings.Contains(s, seq) {
			return s
		}
	}
	return escapeReplacer.Replace(s)
}
