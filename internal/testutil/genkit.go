package testutil

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
)

// NewGenkitWithMock initializes a plugin-free Genkit instance with mock
// registered as its only model.
func NewGenkitWithMock(t *testing.T, mock *MockLLM) *genkit.Genkit {
	t.Helper()
	g := genkit.Init(context.Background())
	mock.Register(g)
	return g
}
