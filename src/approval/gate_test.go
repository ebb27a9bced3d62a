package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApprover struct {
	approved bool
	reason   string
	called   bool
	toolID   string
	subject  string
}

func (s *stubApprover) RequestApproval(ctx context.Context, toolID, question, subject string) (bool, string, error) {
	s.called = true
	s.toolID = toolID
	s.subject = subject
	return s.approved, s.reason, nil
}

func commandProfile(state State, override PatternOverride) *Profile {
	return &Profile{
		Name:      "test",
		States:    map[string]State{"shell:run_command": state},
		Overrides: map[string]PatternOverride{"shell:run_command": override},
	}
}

func TestDecide_DeniedPatternOverridesEverything(t *testing.T) {
	approver := &stubApprover{approved: true}
	gate := NewGate(commandProfile(StateAlways, PatternOverride{
		DeniedPattern: `rm\s+-rf;sudo\s`,
	}), approver, nil)

	decision, err := gate.Decide(context.Background(), "shell:run_command", "sudo reboot")
	require.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reason, "denied pattern")
	assert.False(t, approver.called, "deny must not offer a workaround")
}

func TestDecide_AllowedPatternBypassesPrompt(t *testing.T) {
	approver := &stubApprover{approved: false}
	gate := NewGate(commandProfile(StateAsk, PatternOverride{
		AllowedPattern: `^git status$;^git log`,
	}), approver, nil)

	decision, err := gate.Decide(context.Background(), "shell:run_command", "git status")
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.True(t, decision.BypassedByPattern)
	assert.False(t, approver.called)
}

func TestDecide_DenyWinsOverAllow(t *testing.T) {
	gate := NewGate(commandProfile(StateAlways, PatternOverride{
		AllowedPattern: `^git`,
		DeniedPattern:  `push\s+--force`,
	}), nil, nil)

	decision, err := gate.Decide(context.Background(), "shell:run_command", "git push --force origin main")
	require.NoError(t, err)
	assert.False(t, decision.Approved)
}

func TestDecide_FallsThroughToProfileState(t *testing.T) {
	t.Run("always approves without prompting", func(t *testing.T) {
		approver := &stubApprover{}
		gate := NewGate(commandProfile(StateAlways, PatternOverride{}), approver, nil)

		decision, err := gate.Decide(context.Background(), "shell:run_command", "make test")
		require.NoError(t, err)
		assert.True(t, decision.Approved)
		assert.False(t, decision.BypassedByPattern)
		assert.False(t, approver.called)
	})

	t.Run("ask delegates to the approver", func(t *testing.T) {
		approver := &stubApprover{approved: false, reason: "not on my watch"}
		gate := NewGate(commandProfile(StateAsk, PatternOverride{}), approver, nil)

		decision, err := gate.Decide(context.Background(), "shell:run_command", "make deploy")
		require.NoError(t, err)
		assert.False(t, decision.Approved)
		assert.Equal(t, "not on my watch", decision.Reason)
		assert.True(t, approver.called)
		assert.Equal(t, "make deploy", approver.subject)
	})

	t.Run("never denies stale registrations", func(t *testing.T) {
		gate := NewGate(commandProfile(StateNever, PatternOverride{}), &stubApprover{approved: true}, nil)

		decision, err := gate.Decide(context.Background(), "shell:run_command", "ls")
		require.NoError(t, err)
		assert.False(t, decision.Approved)
	})
}

func TestDecide_NonCommandToolsSkipPatterns(t *testing.T) {
	approver := &stubApprover{approved: true}
	profile := &Profile{
		Name:   "test",
		States: map[string]State{"file:read_file": StateAsk},
		Overrides: map[string]PatternOverride{
			// Overrides configured for a non-command tool are ignored when no
			// command string is supplied.
			"file:read_file": {DeniedPattern: `.*`},
		},
	}
	gate := NewGate(profile, approver, nil)

	decision, err := gate.Decide(context.Background(), "file:read_file", "")
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.True(t, approver.called)
}

func TestDecide_UnknownToolDefaultsToAsk(t *testing.T) {
	approver := &stubApprover{approved: true}
	gate := NewGate(&Profile{Name: "empty"}, approver, nil)

	decision, err := gate.Decide(context.Background(), "web:web_fetch", "")
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.True(t, approver.called)
}

func TestMatchPatternList(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		command string
		matched bool
	}{
		{"empty list", "", "anything", false},
		{"single match", `^ls`, "ls -la", true},
		{"second entry matches", `^pwd$;^ls`, "ls", true},
		{"no match", `^rm;^mv`, "ls", false},
		{"invalid pattern skipped", `([;^ls`, "ls", true},
		{"whitespace tolerated", ` ^git status$ ; ^git diff `, "git diff", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, matched := matchPatternList(tt.list, tt.command)
			assert.Equal(t, tt.matched, matched)
		})
	}
}
