// Package stewardagent wires the built-in tools into a toolbox for an
// approval profile and carries the helpers shared by the CLI.
package stewardagent

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/approval"
	stewardfs "github.com/stewardhq/steward/src/fs"
	"github.com/stewardhq/steward/src/shell"
	"github.com/stewardhq/steward/src/stewardagent/tools/tool_editfile"
	"github.com/stewardhq/steward/src/stewardagent/tools/tool_grepfiles"
	"github.com/stewardhq/steward/src/stewardagent/tools/tool_readfile"
	"github.com/stewardhq/steward/src/stewardagent/tools/tool_runcommand"
	"github.com/stewardhq/steward/src/stewardagent/tools/tool_searchfiles"
	"github.com/stewardhq/steward/src/stewardagent/tools/tool_webfetch"
	"github.com/stewardhq/steward/src/stewardagent/tools/tool_writefile"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// Deps are the external collaborators the built-in tools run against. Zero
// values fall back to the real filesystem, a bash runner, and a no-op task
// environment.
type Deps struct {
	FS     afero.Fs
	Runner shell.Runner
	Env    toolsutil.TaskEnv
	Logger *slog.Logger
}

func (d *Deps) fill() {
	if d.FS == nil {
		d.FS = afero.NewOsFs()
	}
	if d.Runner == nil {
		d.Runner = shell.NewExecRunner("", d.Logger)
	}
	if d.Env == nil {
		d.Env = toolsutil.NopTaskEnv{}
	}
	if d.Logger != nil {
		toolsutil.SetLogger(d.Logger)
	}
}

// AllTools constructs every built-in tool against the given collaborators.
func AllTools(deps Deps) ([]agent.Tool, error) {
	deps.fill()

	// File tools see relative paths anchored at the task directory.
	fsys := stewardfs.ForTask(deps.FS, deps.Env)

	builders := []func() (agent.Tool, error){
		func() (agent.Tool, error) { return tool_readfile.Tool(fsys) },
		func() (agent.Tool, error) { return tool_writefile.Tool(fsys, deps.Env) },
		func() (agent.Tool, error) { return tool_editfile.Tool(fsys) },
		func() (agent.Tool, error) { return tool_searchfiles.Tool(fsys) },
		func() (agent.Tool, error) { return tool_grepfiles.Tool(fsys) },
		func() (agent.Tool, error) { return tool_runcommand.Tool(deps.Runner) },
		tool_webfetch.Tool,
	}

	tools := make([]agent.Tool, 0, len(builders))
	for _, build := range builders {
		tool, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to build tool: %w", err)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// BuildToolbox returns the toolbox an agent running under profile sees.
// Tools whose approval state is never are absent entirely. Every execution
// passes through the logging middleware.
func BuildToolbox(profile *approval.Profile, deps Deps) (*agent.Toolbox, error) {
	tools, err := AllTools(deps)
	if err != nil {
		return nil, err
	}
	toolbox, err := agent.NewToolboxForProfile(profile, tools...)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = toolsutil.GetLogger()
	}
	toolbox.RegisterMiddleware(agent.LoggingMiddleware(logger))
	return toolbox, nil
}
