package cli

import (
	"strings"
)

const commandHelp = `  /help                                  Show the commands
  /status                                Show the actor board and watchdog
  /idle-until <time|off>                 Set or clear the watchdog idle window
  /queue                                 Show the model admission queue
  /remember <note>                       Store a note for future turns
  /quit                                  Save the session and exit
  pause | stop | continue | new task: X  Control the active plan
`

// Command names.
const (
	CmdHelp      = "help"
	CmdStatus    = "status"
	CmdIdleUntil = "idle-until"
	CmdQueue     = "queue"
	CmdRemember  = "remember"
	CmdQuit      = "quit"
)

// Command is one parsed slash command.
type Command struct {
	Name string
	Arg  string
}

// ParseCommand parses a line starting with "/". Names are lower-cased;
// "/exit" is an alias for /quit. Lines that are not slash commands return
// false. A lone "/" or a path such as "/etc/hosts" is not a command.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	name = strings.ToLower(name)
	if name == "" || strings.Contains(name, "/") {
		return Command{}, false
	}
	if name == "exit" {
		name = CmdQuit
	}
	return Command{Name: name, Arg: strings.TrimSpace(arg)}, true
}
