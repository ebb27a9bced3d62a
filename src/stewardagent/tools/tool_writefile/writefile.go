package tool_writefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// Tool identity constants.
const (
	Group = "file"
	Name  = "write_file"
)

const writeFilePrompt = `Writes a file to the local filesystem.

Usage:
- mode selects the behavior: "overwrite" (default) replaces the file, "create_only" fails when the file already exists, "append" adds to the end.
- Parent directories are created automatically.
- ALWAYS prefer editing existing files. Only write new files when explicitly required.
- NEVER proactively create documentation files unless asked.`

// Write modes.
const (
	ModeOverwrite  = "overwrite"
	ModeCreateOnly = "create_only"
	ModeAppend     = "append"
)

// WriteFileInput represents the parameters for write_file.
type WriteFileInput struct {
	Path    string `json:"path" required:"true" description:"The file path to write"`
	Content string `json:"content" required:"true" description:"The content to write"`
	Mode    string `json:"mode,omitempty" description:"Write mode: overwrite (default), create_only, or append"`
	Perm    int    `json:"perm,omitempty" description:"File permissions (octal, e.g. 644)"`
}

// WriteFileOutput represents the response from write_file.
type WriteFileOutput struct {
	Path    string `json:"path" description:"The file path that was written"`
	Size    int    `json:"size" description:"Bytes written"`
	Mode    string `json:"mode" description:"The write mode that was applied"`
	Created bool   `json:"created" description:"Whether the file did not exist before"`
}

// Tool returns the write_file tool definition. Successful creates and
// overwrites are registered with the task's version-control collaborator.
func Tool(fs afero.Fs, env toolsutil.TaskEnv) (agent.Tool, error) {
	return agent.NewGenericTool(Group, Name, writeFilePrompt, makeWriteFileHandler(fs, env))
}

func makeWriteFileHandler(fs afero.Fs, env toolsutil.TaskEnv) func(ctx context.Context, input WriteFileInput) (WriteFileOutput, error) {
	return func(ctx context.Context, input WriteFileInput) (WriteFileOutput, error) {
		logger := toolsutil.GetLogger()

		if err := ctx.Err(); err != nil {
			return WriteFileOutput{}, err
		}
		if !toolsutil.IsPathSafe(input.Path) {
			logger.Error("unsafe path rejected", "path", input.Path)
			return WriteFileOutput{}, fmt.Errorf("%w: %s", toolsutil.ErrUnsafePath, input.Path)
		}
		if err := toolsutil.ValidateFileSize(int64(len(input.Content))); err != nil {
			logger.Error("content too large", "path", input.Path, "size", len(input.Content))
			return WriteFileOutput{}, err
		}

		mode := input.Mode
		if mode == "" {
			mode = ModeOverwrite
		}
		switch mode {
		case ModeOverwrite, ModeCreateOnly, ModeAppend:
		default:
			return WriteFileOutput{}, fmt.Errorf("%w: unknown write mode %q", toolsutil.ErrInvalidParams, mode)
		}

		perm := os.FileMode(input.Perm)
		if input.Perm == 0 {
			perm = 0644
		}

		existed := false
		if _, err := fs.Stat(input.Path); err == nil {
			existed = true
		}
		if existed && mode == ModeCreateOnly {
			logger.Error("file already exists", "path", input.Path)
			return WriteFileOutput{}, fmt.Errorf("file already exists: %s", input.Path)
		}

		if dir := filepath.Dir(input.Path); dir != "." && dir != "/" {
			if err := fs.MkdirAll(dir, 0755); err != nil {
				logger.Error("failed to create directory", "dir", dir, "error", err)
				return WriteFileOutput{}, fmt.Errorf("failed to create directory: %v", err)
			}
		}

		if err := ctx.Err(); err != nil {
			return WriteFileOutput{}, err
		}

		logger.Info("writing file", "path", input.Path, "mode", mode, "content_size", len(input.Content))

		if mode == ModeAppend {
			f, err := fs.OpenFile(input.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perm)
			if err != nil {
				logger.Error("failed to open file for append", "path", input.Path, "error", err)
				return WriteFileOutput{}, fmt.Errorf("failed to open file for append: %v", err)
			}
			if _, err := f.WriteString(input.Content); err != nil {
				f.Close()
				logger.Error("failed to append to file", "path", input.Path, "error", err)
				return WriteFileOutput{}, fmt.Errorf("failed to append to file: %v", err)
			}
			if err := f.Close(); err != nil {
				return WriteFileOutput{}, fmt.Errorf("failed to close file: %v", err)
			}
		} else {
			if err := afero.WriteFile(fs, input.Path, []byte(input.Content), perm); err != nil {
				logger.Error("failed to write file", "path", input.Path, "error", err)
				return WriteFileOutput{}, fmt.Errorf("failed to write file: %v", err)
			}
		}

		// Appends to an existing file keep its version-control state; fresh
		// content does not.
		if env != nil && (mode != ModeAppend || !existed) {
			if err := env.AddToGit(input.Path); err != nil {
				logger.Warn("failed to register file with version control", "path", input.Path, "error", err)
			}
		}

		logger.Info("file written", "path", input.Path, "size", len(input.Content), "created", !existed)

		return WriteFileOutput{
			Path:    input.Path,
			Size:    len(input.Content),
			Mode:    mode,
			Created: !existed,
		}, nil
	}
}
