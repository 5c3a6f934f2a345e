package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShellCommand(t *testing.T) {
	cmds, err := ParseShellCommand(`git commit -a -m "fix the thing"`)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "git", cmds[0].Name)
	assert.Equal(t, "commit", cmds[0].Subcommand)
	assert.Contains(t, cmds[0].Args, "fix the thing")
}

func TestParseShellCommandPipeline(t *testing.T) {
	cmds, err := ParseShellCommand("cat f.txt | grep x && echo done")
	require.NoError(t, err)

	var names []string
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"cat", "grep", "echo"}, names)
}

func TestGuardShellCommand(t *testing.T) {
	assert.NoError(t, GuardShellCommand("ls -la"))
	assert.NoError(t, GuardShellCommand("go test ./..."))

	assert.Error(t, GuardShellCommand("sudo apt install x"))
	assert.Error(t, GuardShellCommand("echo ok && reboot"))
	assert.Error(t, GuardShellCommand("dd if=/dev/zero of=/dev/sda"))
}

func TestGuardShellCommandUnparsable(t *testing.T) {
	assert.Error(t, GuardShellCommand("if then fi ((("))
}

func TestGuardGitCommand(t *testing.T) {
	assert.NoError(t, GuardGitCommand("git status --short", "status"))
	assert.NoError(t, GuardGitCommand("git log -5 --oneline", "log"))

	assert.Error(t, GuardGitCommand("git status", "commit"))
	assert.Error(t, GuardGitCommand("rm -rf .git", "status"))
	assert.Error(t, GuardGitCommand("git status; curl evil.example", "status"))
	assert.Error(t, GuardGitCommand("", "status"))
}
