package cli

import (
	"github.com/spf13/cobra"
)

const helpTemplate = `tandem - supervised local agent runtime

USAGE
  tandem [flags]

A local executor model works in a directory through tool calls. A second
supervisor model reviews every answer before it is acted on. A durable
plan in notes/main_plan.json keeps long tasks on track.

FLAGS
  Models:
    --executor-backend <ollama|openai>     Executor backend (default: ollama)
    --executor-model <model>               Executor model name
    --executor-url <url>                   Executor endpoint (default: backend default)
    --supervisor-backend <ollama|openai>   Supervisor backend (default: executor backend)
    --supervisor-model <model>             Supervisor model name
    --supervisor-url <url>                 Supervisor endpoint (default: executor endpoint)

  Request Tuning:
    --num-ctx <int>                        Context window size (default: 0, VRAM advisor)
    --request-timeout <secs>               Seconds per model request (default: 300)
    --max-retries <int>                    Retries for transient model errors (default: 3)

  Loop Limits:
    --max-tool-steps <int>                 Tool steps per turn before the turn stalls (default: 15)
    --max-corrective-steps <int>           Tool steps per plan corrective turn (default: 3)
    --max-repair-rounds <int>              Supervisor repair rounds per answer (default: 2)

  Watchdog:
    --idle-threshold <secs>                Seconds without progress before reactivation (default: 45)
    --max-idle-reactivations <int>         Reactivations before waiting for input (default: 2)
    --pause-auto-resume <secs>             Seconds before a paused plan resumes (default: 180)
    --idle-until <time|off>                Suppress reactivation until HH:MM, YYYY-MM-DD HH:MM or 30m

  Admission:
    --admission-wait-ms <int>              Max milliseconds a model call waits in the queue (default: 1000)
    --supervisor-min-free-vram-mb <int>    Free VRAM required for supervisor calls (default: 3000)

  Capabilities:
    --autonomous                           Grant every capability without asking
    --shell-policy <path>                  Shell allowlist file (JSON, YAML or JSONL)
    --python <path>                        Python interpreter for python tools (default: python3)

  Side Channels:
    --notify-command <cmd>                 Command run on stall, watchdog cap, tool design, failure, end
    --audit-dir <dir>                      JSONL audit log directory (default: logs)
    --journal                              Also send audit records to the systemd journal
    --startup-notes <path>                 Notes seeded into memory on the first run (default: notes/startup.md)

  Session:
    -C, --work-dir <dir>                   Directory the executor works in (default: .)
    -p, --prompt <text>                    Run one message non-interactively and exit
    --config <path>                        Path to additional config file (.toml or KEY=VALUE)
    --tui                                  Use the full-screen status view
    -v, --verbose                          Show actor transitions and debug output

  Session Management:
    --resume                               Resume from last interrupted session
    --resume-force                         Resume even if the plan changed (implies --resume)
    --clean                                Delete state directory and start fresh
    --cold-start                           Re-seed memory from the startup notes
    --status                               Show session status and exit
    --cancel                               Cancel active session and exit

  Help & Version:
    -h, --help                             Show this help text
    --version                              Show version, commit, build date

COMMANDS (inside a session)
` + commandHelp + `
CONFIGURATION
  Later sources win: defaults, ~/.config/tandem/config.toml, .tandem/config,
  --config, TANDEM_* environment variables (also read from .env), flags.

EXIT CODES
  0   Success              Session ended normally
  1   Error                Invalid arguments, misconfiguration, unreadable state
  2   Stalled              The last turn hit the tool step limit
  3   TransportFailed      The model endpoint kept failing
  130 Interrupted          Second SIGINT or SIGTERM received

EXAMPLES
  # Start an interactive session in the current directory
  tandem

  # Use an OpenAI-compatible server for both models
  tandem --executor-backend openai --executor-url http://127.0.0.1:8080/v1

  # One-shot run without permission prompts
  tandem --autonomous -p "list the files and summarize the README"

  # Resume an interrupted session in the status view
  tandem --resume --tui

  # Check session status
  tandem --status
`

// SetCustomHelp configures the cobra command to use our custom help template.
func SetCustomHelp(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
}
