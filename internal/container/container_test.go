package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"go-plate-recognizer/internal/engine/enginetest"
	"go-plate-recognizer/internal/recognizer"
	"go-plate-recognizer/internal/service"
)

type closingEngine struct {
	*enginetest.Engine
	err    error
	closed int
}

func (e *closingEngine) Close() error {
	e.closed++
	return e.err
}

type failingService struct {
	service.PlateRecognitionService
	err error
}

func (s failingService) Close() error { return s.err }

func TestCloseReportsEveryFailure(t *testing.T) {
	engineErr := errors.New("engine shutdown")
	serviceErr := errors.New("service shutdown")
	eng := &closingEngine{Engine: enginetest.Always(), err: engineErr}
	c := &Container{engine: eng, service: failingService{err: serviceErr}}

	err := c.Close()

	require.Error(t, err)
	assert.ErrorIs(t, err, engineErr)
	assert.ErrorIs(t, err, serviceErr)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 1, eng.closed)
}

func TestCloseWithoutFailures(t *testing.T) {
	eng := &closingEngine{Engine: enginetest.Always()}
	svc, err := service.NewPlateRecognitionService(service.Dependencies{Engine: eng}, service.Settings{
		Options: recognizer.DefaultOptions(),
		Session: recognizer.DefaultSessionConfig(),
	})
	require.NoError(t, err)
	c := &Container{engine: eng, service: svc}

	assert.NoError(t, c.Close())
	assert.Equal(t, 1, eng.closed)
}
