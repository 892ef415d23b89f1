package router

// ScenarioType tags why a particular model was chosen, for downstream
// metrics and logging.
type ScenarioType string

const (
	ScenarioDefault     ScenarioType = "default"
	ScenarioBackground  ScenarioType = "background"
	ScenarioThink       ScenarioType = "think"
	ScenarioLongContext ScenarioType = "longContext"
	ScenarioWebSearch   ScenarioType = "webSearch"
)

// state is the internal state-machine position of one Decide call, tracked
// for diagnostics; it is not exposed to callers beyond the final Decision.
type state string

const (
	stateExtracting     state = "Extracting"
	stateDeciding       state = "Deciding"
	stateResolving      state = "Resolving"
	stateCacheLookup    state = "CacheLookup"
	stateRegistryLookup state = "RegistryLookup"
	stateAutoRegister   state = "AutoRegistering"
	stateDefaulting     state = "Defaulting"
	stateDone           state = "Done"
)
