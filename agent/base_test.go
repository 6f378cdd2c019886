package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseAgent_LoggerNeverNil(t *testing.T) {
	base := NewBaseAgent("plain", "sometype")
	assert.NotNil(t, base.Logger())

	// Passing the zero-value option must not clobber the default.
	base = NewBaseAgent("plain", "sometype", WithLogger(nil))
	assert.NotNil(t, base.Logger())
}

func TestAgents_ConstructibleWithoutOptions(t *testing.T) {
	c := NewCoordinator()
	c.RegisterAgent(NewRiskScanner())
	c.RegisterAgent(NewPolicyMatcher())
	c.RegisterAgent(NewCritic())
	c.RegisterAgent(NewWatchdog())
	c.RegisterAgent(NewReportWriter(func(o *WriterOptions) {
		o.OutputDir = t.TempDir()
	}))

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "full_audit",
	})
	require.NoError(t, err)
	assert.Equal(t, WorkflowCompleted, result["status"])
}
