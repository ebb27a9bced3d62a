package tool_readfile

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// Tool identity constants.
const (
	Group = "file"
	Name  = "read_file"
)

const readFilePrompt = `Reads a file from the local filesystem.

Usage:
- The path can be absolute or relative to the task's working directory.
- Set line_numbers to true to prefix each line with its number (format: "1: line content").
- Binary files are reported but their content is not returned.
- Reading a file that does not exist returns an error, which is fine; use it to probe.`

// ReadFileInput represents the parameters for read_file.
type ReadFileInput struct {
	Path        string `json:"path" required:"true" description:"The file path to read"`
	LineNumbers bool   `json:"line_numbers,omitempty" description:"Include line numbers in output"`
}

// ReadFileOutput represents the response from read_file.
type ReadFileOutput struct {
	Content string `json:"content" description:"The file contents"`
	Path    string `json:"path" description:"The file path that was read"`
	Size    int64  `json:"size" description:"File size in bytes"`
	IsText  bool   `json:"is_text" description:"Whether the file is a text file"`
}

// Tool returns the read_file tool definition.
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Group, Name, readFilePrompt, makeReadFileHandler(fs))
}

func makeReadFileHandler(fs afero.Fs) func(ctx context.Context, input ReadFileInput) (ReadFileOutput, error) {
	return func(ctx context.Context, input ReadFileInput) (ReadFileOutput, error) {
		logger := toolsutil.GetLogger()

		if err := ctx.Err(); err != nil {
			return ReadFileOutput{}, err
		}
		if !toolsutil.IsPathSafe(input.Path) {
			logger.Error("unsafe path rejected", "path", input.Path)
			return ReadFileOutput{}, fmt.Errorf("%w: %s", toolsutil.ErrUnsafePath, input.Path)
		}

		info, err := fs.Stat(input.Path)
		if err != nil {
			logger.Error("file not found", "path", input.Path, "error", err)
			return ReadFileOutput{}, fmt.Errorf("file not found: %s", input.Path)
		}
		if err := toolsutil.ValidateFileSize(info.Size()); err != nil {
			logger.Error("file too large", "path", input.Path, "size", info.Size())
			return ReadFileOutput{}, err
		}

		if err := ctx.Err(); err != nil {
			return ReadFileOutput{}, err
		}

		content, err := afero.ReadFile(fs, input.Path)
		if err != nil {
			logger.Error("failed to read file", "path", input.Path, "error", err)
			return ReadFileOutput{}, fmt.Errorf("failed to read file: %v", err)
		}

		isText := toolsutil.IsTextFile(content)
		display := string(content)
		if !isText {
			display = fmt.Sprintf("binary file (%s)", toolsutil.FormatBytes(int64(len(content))))
		} else if input.LineNumbers {
			display = addLineNumbers(display)
		}

		logger.Info("file read", "path", input.Path, "size", len(content), "is_text", isText)

		return ReadFileOutput{
			Content: display,
			Path:    input.Path,
			Size:    int64(len(content)),
			IsText:  isText,
		}, nil
	}
}

func addLineNumbers(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = fmt.Sprintf("%d: %s", i+1, line)
	}
	return strings.Join(out, "\n")
}
