package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLReturnsUsableLoggerByDefault(t *testing.T) {
	l := L()
	assert.NotNil(t, l)
	l.Info("smoke test")
}

func TestNamedScopesLogger(t *testing.T) {
	named := Named("engine")
	assert.NotNil(t, named)
}

func TestWithAttachesFields(t *testing.T) {
	scoped := With(zap.String("component", "auth"))
	assert.NotNil(t, scoped)
}

func TestSyncDoesNotPanicBeforeInit(t *testing.T) {
	_ = L()
	assert.NotPanics(t, func() { _ = Sync() })
}
