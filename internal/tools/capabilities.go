package tools

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"slices"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/permission"
)

// probedBinaries are reported by check_capabilities.
var probedBinaries = []string{"python3", "curl", "git"}

// CheckAvailability reports which of the given binaries are on PATH.
func CheckAvailability(lookPath func(string) (string, error), binaries ...string) map[string]bool {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	result := make(map[string]bool, len(binaries))
	for _, bin := range binaries {
		_, err := lookPath(bin)
		result[bin] = err == nil
	}
	return result
}

func (e *Executor) checkCapabilities(ctx context.Context, args parser.Args) Result {
	binaries := CheckAvailability(e.lookPath, append(slices.Clone(probedBinaries), e.python())...)

	readiness := make(map[string]bool, len(parser.KnownTools))
	for _, name := range parser.KnownTools {
		readiness[name] = true
	}
	readiness["run_python"] = binaries[e.python()]
	readiness["check_python_syntax"] = binaries[e.python()]

	network := "not_checked"
	if args.Bool("check_network", false) {
		network = e.probeNetwork(ctx)
	}

	return succeed("check_capabilities", map[string]any{
		"autonomous_mode":  e.Autonomous,
		"binaries":         binaries,
		"tool_readiness":   readiness,
		"registered_tools": RegisteredTools(e.WorkDir),
		"network_status":   network,
	})
}

func (e *Executor) probeNetwork(ctx context.Context) string {
	if !e.allowed(permission.NetworkInternet, "Checking connectivity needs internet access.") {
		return "permission_denied:" + permission.NetworkInternet
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, e.ProbeURL, nil)
	if err != nil {
		return "failed:" + err.Error()
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := e.httpClient().Do(req)
	if err != nil {
		return "failed:" + err.Error()
	}
	resp.Body.Close()
	return fmt.Sprintf("ok:%d", resp.StatusCode)
}
