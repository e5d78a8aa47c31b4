package admission

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/CodexForgeBR/tandem/internal/model"
)

// Profile describes the GPU memory available to the model server.
// Known is false when no measurement could be taken.
type Profile struct {
	FreeMB          int
	TotalMB         int
	Known           bool
	SuggestedNumCtx int
}

// VRAMProbe measures GPU memory.
type VRAMProbe interface {
	Probe(ctx context.Context) Profile
}

// VRAMDecision is the outcome of CheckVRAM.
type VRAMDecision struct {
	Allowed bool
	Known   bool
	FreeMB  int
}

// CheckVRAM decides whether a call for role may run given free GPU memory.
// Only supervisor calls are gated. An unmeasurable GPU is allowed with
// Known=false.
func (q *Queue) CheckVRAM(ctx context.Context, role model.Role, probe VRAMProbe) VRAMDecision {
	if role != model.Supervisor || probe == nil {
		q.record(Decision{Decision: "vram_skip_check", Role: role})
		return VRAMDecision{Allowed: true}
	}

	profile := probe.Probe(ctx)
	if !profile.Known {
		q.record(Decision{Decision: "vram_unknown", Role: role})
		return VRAMDecision{Allowed: true}
	}

	allowed := profile.FreeMB >= q.minFreeMB
	decision := "vram_blocked"
	if allowed {
		decision = "vram_allowed"
	}
	q.record(Decision{Decision: decision, Role: role, FreeMB: profile.FreeMB, RequiredMB: q.minFreeMB})
	return VRAMDecision{Allowed: allowed, Known: true, FreeMB: profile.FreeMB}
}

func (q *Queue) record(d Decision) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recordLocked(d)
}

// SuggestNumCtx maps free GPU memory to a context window size.
func SuggestNumCtx(freeMB int, known bool) int {
	switch {
	case !known:
		return 4096
	case freeMB < 2048:
		return 1024
	case freeMB < 4096:
		return 2048
	case freeMB < 8192:
		return 3072
	default:
		return 4096
	}
}

// NvidiaSMIProbe reads GPU memory through nvidia-smi.
type NvidiaSMIProbe struct {
	// Command defaults to "nvidia-smi".
	Command string
	// Timeout defaults to 3s.
	Timeout time.Duration
}

// Probe implements VRAMProbe. Multiple GPUs report the smallest free and
// the largest total value.
func (p NvidiaSMIProbe) Probe(ctx context.Context) Profile {
	command := p.Command
	if command == "" {
		command = "nvidia-smi"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, command,
		"--query-gpu=memory.free,memory.total",
		"--format=csv,noheader,nounits",
	).Output()
	if err != nil {
		return Profile{SuggestedNumCtx: SuggestNumCtx(0, false)}
	}
	free, total, ok := ParseNvidiaSMI(string(out))
	return Profile{FreeMB: free, TotalMB: total, Known: ok, SuggestedNumCtx: SuggestNumCtx(free, ok)}
}

// ParseNvidiaSMI parses "free, total" CSV lines. Malformed lines are
// skipped; ok is false when no line parsed.
func ParseNvidiaSMI(output string) (freeMB, totalMB int, ok bool) {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Split(strings.TrimSpace(line), ",")
		if len(parts) != 2 {
			continue
		}
		free, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		total, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			continue
		}
		if !ok || free < freeMB {
			freeMB = free
		}
		if !ok || total > totalMB {
			totalMB = total
		}
		ok = true
	}
	return freeMB, totalMB, ok
}

// String renders the profile for status output.
func (p Profile) String() string {
	if !p.Known {
		return "vram unknown"
	}
	return fmt.Sprintf("vram free=%dMB total=%dMB num_ctx=%d", p.FreeMB, p.TotalMB, p.SuggestedNumCtx)
}
