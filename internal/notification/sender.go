package notification

import (
	"context"
	"os/exec"
	"time"

	"github.com/google/shlex"
)

// Timeout bounds one notify command run.
const Timeout = 10 * time.Second

// Sender runs an operator-supplied command for runtime events. The command
// line is split with shell quoting rules and receives
// --event <event> --message <message>.
type Sender struct {
	Command   string
	WorkDir   string
	SessionID string
}

// Notify formats event and runs the command in the background.
// Fire-and-forget: never blocks the loop, silent on failure. A nil sender
// or an empty command is a no-op.
func (s *Sender) Notify(event, detail string) {
	if s == nil || s.Command == "" {
		return
	}
	message := FormatEvent(event, s.WorkDir, s.SessionID, detail)
	go SendNotification(s.Command, event, message)
}

// SendNotification runs command synchronously with Timeout and ignores
// the outcome. No-op when command is empty or cannot be split.
func SendNotification(command, event, message string) {
	argv, err := shlex.Split(command)
	if err != nil || len(argv) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	argv = append(argv, "--event", event, "--message", message)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	// Fire and forget - ignore errors
	_ = cmd.Run()
}
