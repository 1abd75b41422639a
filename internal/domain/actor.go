package domain

// ActorType differentiates requesters from support agents. Identity arrives
// with each call; the core keeps no session state.
type ActorType string

const (
	ActorTypeRequester ActorType = "REQUESTER"
	ActorTypeAgent     ActorType = "AGENT"
	ActorTypeSystem    ActorType = "SYSTEM"
)

// Actor is the caller identity passed explicitly into every state-changing
// operation.
type Actor struct {
	ID   string
	Type ActorType
}
