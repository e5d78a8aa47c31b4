// Package policy holds the shell allowlist that gates run_shell.
package policy

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/shlex"
)

// Policy is the shell allowlist.
type Policy struct {
	// NoArgCommands run only without arguments.
	NoArgCommands []string `json:"no_arg_commands" yaml:"no_arg_commands"`

	// ArgSubsetCommands accept any subset of their listed arguments.
	ArgSubsetCommands map[string][]string `json:"arg_subset_commands" yaml:"arg_subset_commands"`

	// ExactCommands must match argv exactly.
	ExactCommands [][]string `json:"exact_commands" yaml:"exact_commands"`

	// IPAllowedSubcommands are accepted as "ip <sub> [show]".
	IPAllowedSubcommands []string `json:"ip_allowed_subcommands" yaml:"ip_allowed_subcommands"`

	// CatAllowedFiles may be read with "cat <file>".
	CatAllowedFiles []string `json:"cat_allowed_files" yaml:"cat_allowed_files"`
}

// Default returns the built-in read-only policy.
func Default() *Policy {
	return &Policy{
		NoArgCommands: []string{"lscpu", "mount", "whoami", "id", "pwd", "date", "uptime", "nproc"},
		ArgSubsetCommands: map[string][]string{
			"uname": {"-a", "-r", "-s", "-m", "-n", "-v"},
			"free":  {"-h", "-m", "-g"},
			"df":    {"-h", "-T"},
			"lsblk": {"-a", "-f"},
			"ss":    {"-tulpen", "-tulpn", "-tulp", "-tuna", "-lntup"},
		},
		ExactCommands: [][]string{
			{"ps", "aux"},
			{"ps", "-ef"},
			{"ollama", "list"},
		},
		IPAllowedSubcommands: []string{"addr", "route", "link"},
		CatAllowedFiles: []string{
			"/proc/cpuinfo",
			"/proc/meminfo",
			"/proc/loadavg",
			"/proc/uptime",
			"/proc/version",
			"/etc/os-release",
		},
	}
}

// RejectedError is returned for commands outside the allowlist.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return e.Reason
}

func reject(format string, args ...any) ([]string, error) {
	return nil, &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// Validate tokenizes command and checks it against the policy. It returns
// the argv to execute, or a *RejectedError.
func (p *Policy) Validate(command string) ([]string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return reject("invalid command syntax: %v", err)
	}
	if len(argv) == 0 {
		return reject("empty command")
	}

	name := filepath.Base(argv[0])
	args := argv[1:]

	if slices.Contains(p.NoArgCommands, name) {
		if len(args) > 0 {
			return reject("command %q takes no arguments", name)
		}
		return argv, nil
	}

	if allowed, ok := p.ArgSubsetCommands[name]; ok {
		for _, arg := range args {
			if !slices.Contains(allowed, arg) {
				return reject("argument %q not allowed for %q", arg, name)
			}
		}
		return argv, nil
	}

	full := append([]string{name}, args...)
	for _, exact := range p.ExactCommands {
		if slices.Equal(exact, full) {
			return argv, nil
		}
	}

	switch name {
	case "ps":
		return reject("allowed: 'ps aux' or 'ps -ef'")
	case "ip":
		if len(args) == 0 || !slices.Contains(p.IPAllowedSubcommands, args[0]) {
			return reject("allowed: 'ip <%s> [show]'", strings.Join(p.IPAllowedSubcommands, "|"))
		}
		if len(args) == 1 || (len(args) == 2 && args[1] == "show") {
			return argv, nil
		}
		return reject("allowed: 'ip <%s> [show]'", strings.Join(p.IPAllowedSubcommands, "|"))
	case "cat":
		if len(args) != 1 {
			return reject("allowed: 'cat <file>' for selected system files")
		}
		if slices.Contains(p.CatAllowedFiles, args[0]) {
			return argv, nil
		}
		return reject("file %q is not readable with cat", args[0])
	}

	return reject("command %q is not on the allowlist", name)
}
