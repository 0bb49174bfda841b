package ai

// Status describes the agent for the web form and the CLI banner.
func (a *Agent) Status() map[string]interface{} {
	modelName := "custom"
	if named, ok := a.model.(interface{ Name() string }); ok {
		modelName = named.Name()
	}

	return map[string]interface{}{
		"model":                modelName,
		"availableTools":       a.registry.Names(),
		"maxRounds":            a.cfg.MaxRounds,
		"retrieval":            a.retriever != nil,
		"allowMissingExemplar": a.cfg.AllowMissingExemplar,
		"answerMarker":         a.cfg.AnswerMarker,
	}
}
