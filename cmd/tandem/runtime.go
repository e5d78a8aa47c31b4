package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/CodexForgeBR/tandem/internal/admission"
	"github.com/CodexForgeBR/tandem/internal/ai"
	"github.com/CodexForgeBR/tandem/internal/audit"
	"github.com/CodexForgeBR/tandem/internal/chat"
	"github.com/CodexForgeBR/tandem/internal/cli"
	"github.com/CodexForgeBR/tandem/internal/config"
	"github.com/CodexForgeBR/tandem/internal/logging"
	"github.com/CodexForgeBR/tandem/internal/memory"
	"github.com/CodexForgeBR/tandem/internal/model"
	"github.com/CodexForgeBR/tandem/internal/notification"
	"github.com/CodexForgeBR/tandem/internal/orchestrator"
	"github.com/CodexForgeBR/tandem/internal/permission"
	"github.com/CodexForgeBR/tandem/internal/plan"
	"github.com/CodexForgeBR/tandem/internal/policy"
	"github.com/CodexForgeBR/tandem/internal/state"
	"github.com/CodexForgeBR/tandem/internal/supervisor"
	"github.com/CodexForgeBR/tandem/internal/tools"
	"github.com/CodexForgeBR/tandem/internal/tui"
)

const (
	memoryFile = "notes/memory.md"

	// modelCheckTimeout bounds the startup lookup of pulled models.
	modelCheckTimeout = 5 * time.Second

	activityLogFile = "activity.jsonl"
	dialogueLogFile = "supervisor_dialogue.jsonl"
)

// runtime is everything one session is wired from.
type runtime struct {
	orch     *orchestrator.Orchestrator
	chat     *chat.Session
	memory   *memory.Store
	queue    *admission.Queue
	notifier *notification.Sender
	perms    *permission.Manager
	activity *audit.ActivityLog

	// inputs feeds the orchestrator. console and outbox are nil in
	// one-shot mode; outbox is only set for the TUI.
	inputs  chan orchestrator.Input
	console *cli.Console
	outbox  *tui.Outbox

	sinks     []*audit.Sink
	closeOnce sync.Once
}

func newRuntime(cfg *config.Config, workDir string, session *state.SessionState) (*runtime, error) {
	rt := &runtime{
		queue: admission.NewQueue(
			time.Duration(cfg.AdmissionWaitMS)*time.Millisecond,
			cfg.SupervisorMinFreeVRAMMB,
		),
		notifier: &notification.Sender{
			Command:   cfg.NotifyCommand,
			WorkDir:   workDir,
			SessionID: session.SessionID,
		},
		inputs: make(chan orchestrator.Input, cli.InputBuffer),
	}

	activity, dialogue, execIO, supIO := rt.openAudit(cfg, workDir)
	rt.activity = activity

	probe := admission.NvidiaSMIProbe{}
	numCtx := cfg.NumCtx
	if numCtx == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		profile := probe.Probe(ctx)
		cancel()
		numCtx = admission.SuggestNumCtx(profile.FreeMB, profile.Known)
		logging.Debug(fmt.Sprintf("VRAM %s, num_ctx %d", profile, numCtx))
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	retry := ai.RetryConfig{MaxRetries: cfg.MaxRetries}

	execBackend, execModel, execURL := executorEndpoint(cfg)
	execChat := newBackend(execBackend, execURL, cfg.APIKey, timeout)
	checkPulled(execChat, execModel)
	executor := &ai.RoleClient{
		Role:     model.Executor,
		Model:    execModel,
		Backend:  execChat,
		Queue:    rt.queue,
		Probe:    probe,
		NumCtx:   numCtx,
		Retry:    retry,
		IO:       execIO,
		Activity: activity,
	}

	supBackend, supModel, supURL := supervisorEndpoint(cfg)
	supChat := newBackend(supBackend, supURL, cfg.APIKey, timeout)
	checkPulled(supChat, supModel)
	reviewer := &ai.RoleClient{
		Role:     model.Supervisor,
		Model:    supModel,
		Backend:  supChat,
		Queue:    rt.queue,
		Probe:    probe,
		NumCtx:   numCtx,
		Retry:    retry,
		IO:       supIO,
		Activity: activity,
	}

	planStore := plan.NewStore(workDir)
	rt.memory = memory.NewStore(filepath.Join(workDir, memoryFile))
	seedStartup(rt.memory, activity, startupNotesPath(cfg.StartupNotes, workDir), cfg.ColdStart)
	rt.chat = chat.New(executor, workDir, planStore, rt.memory)
	rt.chat.Activity = activity
	rt.chat.Tools = func() []string { return tools.RegisteredTools(workDir) }

	sup := supervisor.New(reviewer, activity, dialogue)
	sup.MaxRepairRounds = cfg.MaxRepairRounds

	switch {
	case cfg.Prompt != "":
	case cfg.TUI:
		rt.outbox = &tui.Outbox{}
		rt.console = cli.NewConsole(rt.inputs, rt.outbox)
	default:
		rt.console = cli.NewConsole(rt.inputs, os.Stdout)
	}
	if rt.console != nil {
		rt.console.Queue = rt.queue
		rt.console.Remember = rt.chat.Remember
		rt.console.Verbose = cfg.Verbose
	}

	switch {
	case cfg.Autonomous:
		rt.perms = permission.NewAutonomous()
	case rt.console != nil:
		rt.perms = permission.NewManager(rt.console.Ask, logging.Info)
	default:
		rt.perms = permission.NewManager(permission.ConsoleAsk(os.Stdin, os.Stdout), logging.Info)
	}

	shellPolicy := policy.Default()
	if cfg.ShellPolicyFile != "" {
		p, err := policy.Load(cfg.ShellPolicyFile)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("shell policy: %w", err)
		}
		shellPolicy = p
	}

	executorTools := tools.NewExecutor(workDir, rt.perms, shellPolicy)
	executorTools.PlanPath = planStore.Path()
	executorTools.Autonomous = cfg.Autonomous
	executorTools.Python = cfg.Python

	rt.orch = orchestrator.New(workDir, rt.chat, executorTools, orchestrator.Options{
		MaxToolSteps:         cfg.MaxToolSteps,
		MaxCorrectiveSteps:   cfg.MaxCorrectiveSteps,
		IdleThreshold:        time.Duration(cfg.IdleThreshold) * time.Second,
		MaxIdleReactivations: cfg.MaxIdleReactivations,
		PauseAutoResume:      time.Duration(cfg.PauseAutoResume) * time.Second,
		Interactive:          cfg.Prompt == "",
	})
	rt.orch.Plan = planStore
	rt.orch.Reviewer = sup
	rt.orch.Memory = rt.memory
	rt.orch.Activity = activity
	rt.orch.Notifier = rt.notifier

	return rt, nil
}

// startupNotesPath resolves raw against the current directory first and the
// work dir second.
func startupNotesPath(raw, workDir string) string {
	if raw == "" || filepath.IsAbs(raw) {
		return raw
	}
	if _, err := os.Stat(raw); err == nil {
		return raw
	}
	if candidate := filepath.Join(workDir, raw); fileExists(candidate) {
		return candidate
	}
	return raw
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// seedStartup stores the startup notes as the first session summary. A
// cold start replaces an earlier seed.
func seedStartup(store *memory.Store, activity *audit.ActivityLog, path string, force bool) {
	if path == "" || !fileExists(path) {
		activity.Log("startup.seed.skip", "no startup notes to seed", map[string]any{"path": path})
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn(fmt.Sprintf("startup notes %s: %v", path, err))
		return
	}
	summary, err := store.Seed(string(data), force)
	if err != nil {
		logging.Warn(fmt.Sprintf("seed memory: %v", err))
		return
	}
	if summary == "" {
		return
	}
	activity.Log("startup.seed.done", "seed memory from the startup notes", map[string]any{
		"path":          path,
		"summary_chars": len(summary),
	})
	logging.Debug(fmt.Sprintf("memory seeded from %s", path))
}

// openAudit opens the JSONL logs under the audit dir. A log that cannot be
// opened is replaced by a no-op sink.
func (rt *runtime) openAudit(cfg *config.Config, workDir string) (*audit.ActivityLog, *audit.DialogueLog, *audit.ModelIOLog, *audit.ModelIOLog) {
	dir := cfg.AuditDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workDir, dir)
	}
	opts := audit.Options{Journal: cfg.Journal}
	open := func(name, msgKey string) *audit.Sink {
		sink, err := audit.Open(filepath.Join(dir, name), msgKey, opts)
		if err != nil {
			logging.Warn("Audit log disabled: " + err.Error())
			return audit.Nop()
		}
		rt.sinks = append(rt.sinks, sink)
		return sink
	}
	return audit.NewActivityLog(open(activityLogFile, "action")),
		audit.NewDialogueLog(open(dialogueLogFile, "type")),
		audit.NewModelIOLog(open(modelIOLogFile(model.Executor), "event"), model.Executor),
		audit.NewModelIOLog(open(modelIOLogFile(model.Supervisor), "event"), model.Supervisor)
}

func modelIOLogFile(role model.Role) string {
	return "model_io_" + string(role) + ".jsonl"
}

// Close flushes the audit sinks. It is safe to call more than once.
func (rt *runtime) Close() {
	rt.closeOnce.Do(func() {
		for _, s := range rt.sinks {
			s.Close()
		}
		if rt.console != nil {
			rt.console.Close()
		}
	})
}

func newBackend(backend, baseURL, apiKey string, timeout time.Duration) ai.ChatBackend {
	if backend == model.OpenAI {
		return ai.NewOpenAIBackend(baseURL, apiKey, timeout)
	}
	return ai.NewOllamaBackend(baseURL, timeout)
}

// checkPulled warns when an ollama server is unreachable or has not pulled
// name. Other backends are not checked.
func checkPulled(backend ai.ChatBackend, name string) {
	ollama, ok := backend.(*ai.OllamaBackend)
	if !ok {
		return
	}
	baseURL, _ := ollama.Endpoint()
	ctx, cancel := context.WithTimeout(context.Background(), modelCheckTimeout)
	defer cancel()
	names, err := ollama.ListModels(ctx)
	if err != nil {
		logging.Warn(fmt.Sprintf("Model server %s is not reachable: %v", baseURL, err))
		return
	}
	if !model.IsOllamaModelHint(name) {
		name += ":latest"
	}
	if !slices.Contains(names, name) {
		logging.Warn(fmt.Sprintf("Model %s is not pulled on %s (ollama pull %s)", name, baseURL, name))
	}
}

func executorEndpoint(cfg *config.Config) (backend, modelName, baseURL string) {
	backend, modelName = model.SetupExecutor(cfg.ExecutorBackend, cfg.ExecutorModel)
	baseURL = cfg.ExecutorBaseURL
	if baseURL == "" {
		baseURL = model.DefaultBaseURL(backend)
	}
	return backend, modelName, baseURL
}

// supervisorEndpoint falls back to the executor's URL when both roles use
// the same backend.
func supervisorEndpoint(cfg *config.Config) (backend, modelName, baseURL string) {
	execBackend, _, execURL := executorEndpoint(cfg)
	backend, modelName = model.SetupSupervisor(execBackend, cfg.SupervisorBackend, cfg.SupervisorModel)
	baseURL = cfg.SupervisorBaseURL
	switch {
	case baseURL != "":
	case backend == execBackend:
		baseURL = execURL
	default:
		baseURL = model.DefaultBaseURL(backend)
	}
	return backend, modelName, baseURL
}
