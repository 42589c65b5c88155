// Package api serves the auxiliary JSON routes of the yurie relay: the
// model catalog, user preferences and the stateless chat and project stubs.
package api

// Config is the API server configuration.
type Config struct {
	// DefaultModel is reported for chats created without a model.
	DefaultModel string
}
