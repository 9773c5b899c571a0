package commands

import (
	"github.com/critic-sh/critic/internal/core/ai"
	"github.com/critic-sh/critic/internal/core/comment"
	"github.com/critic-sh/critic/internal/core/deliver"
	"github.com/critic-sh/critic/internal/core/detect"
	"github.com/critic-sh/critic/internal/core/mcp"
	"github.com/critic-sh/critic/internal/core/target"
)

// App holds the wired services. Populated once in the root Before hook;
// commands hold a pointer to it.
type App struct {
	Store    comment.Store
	Registry *mcp.Registry
	Resolver *target.Resolver
	Detector *detect.Detector
	Pipeline *ai.Pipeline
	Deliver  *deliver.Orchestrator
}
