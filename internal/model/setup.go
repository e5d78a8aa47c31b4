package model

// SetupSupervisor resolves the supervisor backend and model.
// An empty backend reuses the executor backend; an empty model falls back
// to DefaultSupervisorModel.
func SetupSupervisor(executorBackend, backend, model string) (string, string) {
	if backend == "" {
		backend = executorBackend
	}
	if model == "" {
		model = DefaultModelFor(Supervisor)
	}
	return backend, model
}

// SetupExecutor resolves the executor backend and model.
func SetupExecutor(backend, model string) (string, string) {
	if backend == "" {
		backend = Ollama
	}
	if model == "" {
		model = DefaultModelFor(Executor)
	}
	return backend, model
}
