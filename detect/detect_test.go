package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entityTypes(entities []Entity) []string {
	types := make([]string, len(entities))
	for i, e := range entities {
		types[i] = e.Type
	}
	return types
}

func TestPatternDetector_Email(t *testing.T) {
	d := NewPatternDetector()

	entities, err := d.Analyze(context.Background(), "contact jane.doe@example.com for access", "en")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "email", entities[0].Type)
	assert.Equal(t, "jane.doe@example.com", "contact jane.doe@example.com for access"[entities[0].Start:entities[0].End])
	assert.Greater(t, entities[0].Score, 0.9)
}

func TestPatternDetector_SSN(t *testing.T) {
	d := NewPatternDetector()

	entities, err := d.Analyze(context.Background(), "ssn on file: 123-45-6789", "en")
	require.NoError(t, err)
	assert.Contains(t, entityTypes(entities), "ssn")
}

func TestPatternDetector_APIKey(t *testing.T) {
	d := NewPatternDetector()

	entities, err := d.Analyze(context.Background(), "token sk_live4eC39HqLyjWDarjtT1zdp7dc in config", "en")
	require.NoError(t, err)
	assert.Contains(t, entityTypes(entities), "api_key")
}

func TestPatternDetector_MultipleOrderedByOffset(t *testing.T) {
	d := NewPatternDetector()
	text := "a@b.io then call 555-123-4567 later"

	entities, err := d.Analyze(context.Background(), text, "en")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entities), 2)
	for i := 1; i < len(entities); i++ {
		assert.LessOrEqual(t, entities[i-1].Start, entities[i].Start)
	}
}

func TestPatternDetector_CleanText(t *testing.T) {
	d := NewPatternDetector()

	entities, err := d.Analyze(context.Background(), "quarterly revenue grew by twelve percent", "en")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestPatternDetector_CancelledContext(t *testing.T) {
	d := NewPatternDetector()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Analyze(ctx, "a@b.io", "en")
	assert.ErrorIs(t, err, context.Canceled)
}
