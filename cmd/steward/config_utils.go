package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stewardhq/steward/src/approval"
	"github.com/stewardhq/steward/src/config"
)

// loadConfigAndProfile loads the merged configuration and resolves the
// approval profile selected by --profile (or the configured default).
func loadConfigAndProfile(cli *CLI) (*config.Config, *approval.Profile, error) {
	loader := config.NewLoader()
	loader.UserConfig = cli.Config

	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}
	cfg, err := loader.Load(wd)
	if err != nil {
		return nil, nil, err
	}

	profile, err := cfg.ApprovalProfile(cli.Profile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, profile, nil
}

// terminalApprover prompts on stderr and reads the decision from stdin.
type terminalApprover struct {
	in  *bufio.Reader
	out *os.File
}

func newTerminalApprover() *terminalApprover {
	return &terminalApprover{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

func (a *terminalApprover) RequestApproval(ctx context.Context, toolID, question, subject string) (bool, string, error) {
	fmt.Fprintf(a.out, "\n%s\n", question)
	if subject != "" {
		fmt.Fprintf(a.out, "  %s\n", subject)
	}
	fmt.Fprint(a.out, "Approve? [y/N] ")

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, "", ctx.Err()
	case ans := <-ch:
		if ans.err != nil {
			return false, "", ans.err
		}
		line := strings.TrimSpace(ans.line)
		if strings.EqualFold(line, "y") || strings.EqualFold(line, "yes") {
			return true, "", nil
		}
		fmt.Fprint(a.out, "Reason (optional): ")
		reason, err := a.in.ReadString('\n')
		if err != nil {
			return false, "", nil
		}
		return false, strings.TrimSpace(reason), nil
	}
}
