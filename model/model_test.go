package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_CannedResponse(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddResponse("assess risk", "low residual risk")

	out, err := m.Generate(context.Background(), "assess risk")
	require.NoError(t, err)
	assert.Equal(t, "low residual risk", out)
	assert.Equal(t, []string{"assess risk"}, m.Calls())
}

func TestMockModel_DefaultEcho(t *testing.T) {
	m := NewMockModel("test-model")

	out, err := m.Generate(context.Background(), "unseen prompt")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: unseen prompt", out)
}

func TestMockModel_FailureInjection(t *testing.T) {
	m := NewMockModel("test-model")
	boom := errors.New("quota exceeded")
	m.FailWith(boom)

	_, err := m.Generate(context.Background(), "anything")
	assert.ErrorIs(t, err, boom)

	m.FailWith(nil)
	_, err = m.Generate(context.Background(), "anything")
	assert.NoError(t, err)
}

func TestMockModel_Stream(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddResponse("hi", "ok!")

	out, errCh := m.GenerateStream(context.Background(), "hi")

	var full string
	for chunk := range out {
		full += chunk
	}
	assert.Equal(t, "ok!", full)
	assert.NoError(t, <-errCh)
}

func TestMockModel_Info(t *testing.T) {
	m := NewMockModel("test-model")
	info := m.Info()
	assert.Equal(t, "test-model", info.Name)
	assert.Equal(t, "mock", info.Provider)
}
