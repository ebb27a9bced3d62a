// Package approval decides whether an agent-requested tool invocation may
// proceed: per-tool policy states on a profile, regex pattern overrides for
// command-executing tools, and an interactive collaborator for the rest.
package approval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// State is the per-tool approval policy stored on a profile.
type State string

const (
	// StateAlways approves without prompting.
	StateAlways State = "always"
	// StateAsk defers to the interactive approver.
	StateAsk State = "ask"
	// StateNever removes the tool from the agent's tool set entirely; it is
	// filtered at registration, not blocked at call time.
	StateNever State = "never"
)

// PatternOverride gates command-executing tools with semicolon-separated
// regular expression lists. Deny wins over everything including the profile
// state; allow skips the interactive prompt.
type PatternOverride struct {
	AllowedPattern string `json:"allowed_pattern,omitempty" validate:"omitempty,pattern_list"`
	DeniedPattern  string `json:"denied_pattern,omitempty" validate:"omitempty,pattern_list"`
}

// Profile maps "group:tool" identifiers to approval states plus optional
// pattern overrides. Profiles are loaded by the external settings manager.
type Profile struct {
	Name      string                     `json:"name"`
	States    map[string]State           `json:"states"`
	Overrides map[string]PatternOverride `json:"overrides,omitempty"`
}

// StateFor returns the approval state for a tool ID, defaulting to ask.
func (p *Profile) StateFor(toolID string) State {
	if p == nil {
		return StateAsk
	}
	if state, ok := p.States[toolID]; ok {
		return state
	}
	return StateAsk
}

// OverrideFor returns the pattern override configured for a tool ID, if any.
func (p *Profile) OverrideFor(toolID string) (PatternOverride, bool) {
	if p == nil {
		return PatternOverride{}, false
	}
	override, ok := p.Overrides[toolID]
	return override, ok
}

// Approver is the interactive collaborator consulted for ask-state tools.
// The wait is bounded only by user interaction, never by a pipeline timeout.
type Approver interface {
	RequestApproval(ctx context.Context, toolID, question, subject string) (approved bool, reason string, err error)
}

// Decision is the outcome of a gate check.
type Decision struct {
	Approved          bool
	BypassedByPattern bool
	// Reason carries the denial rationale: the matched deny pattern, or the
	// user's stated reason for an interactive denial.
	Reason string
}

// Gate is the policy function for one task/profile pair. Construct one per
// pair and inject it into each invocation rather than sharing global state.
type Gate struct {
	profile  *Profile
	approver Approver
	logger   *slog.Logger
}

// NewGate creates an approval gate bound to a profile and an interactive
// approver.
func NewGate(profile *Profile, approver Approver, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{profile: profile, approver: approver, logger: logger}
}

// Decide resolves the approval decision for one tool invocation. command is
// the executable command line for command-running tools and empty for
// everything else; pattern overrides apply only when it is non-empty.
func (g *Gate) Decide(ctx context.Context, toolID, command string) (Decision, error) {
	if command != "" {
		if override, ok := g.profile.OverrideFor(toolID); ok {
			if pattern, matched := matchPatternList(override.DeniedPattern, command); matched {
				g.logger.Warn("command denied by pattern", "tool", toolID, "pattern", pattern)
				return Decision{
					Approved: false,
					Reason:   fmt.Sprintf("command matches denied pattern: %s", pattern),
				}, nil
			}
			if _, matched := matchPatternList(override.AllowedPattern, command); matched {
				g.logger.Debug("command approved by pattern", "tool", toolID)
				return Decision{Approved: true, BypassedByPattern: true}, nil
			}
		}
	}

	switch g.profile.StateFor(toolID) {
	case StateAlways:
		return Decision{Approved: true}, nil
	case StateNever:
		// Never tools are normally absent from the toolbox; reaching this
		// branch means a stale registration, so deny outright.
		return Decision{Approved: false, Reason: "tool is disabled on this profile"}, nil
	default:
		if g.approver == nil {
			return Decision{Approved: false, Reason: "no approver configured"}, nil
		}
		question := fmt.Sprintf("Allow the agent to use %s?", toolID)
		approved, reason, err := g.approver.RequestApproval(ctx, toolID, question, command)
		if err != nil {
			return Decision{}, fmt.Errorf("approval request failed: %w", err)
		}
		return Decision{Approved: approved, Reason: reason}, nil
	}
}

// matchPatternList evaluates a semicolon-separated regex list against a
// command string and reports the first matching pattern. Invalid patterns
// are skipped rather than failing the whole list.
func matchPatternList(list, command string) (string, bool) {
	if list == "" {
		return "", false
	}
	for _, pattern := range strings.Split(list, ";") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(command) {
			return pattern, true
		}
	}
	return "", false
}
