package ocr_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docfields/internal/domain"
	"docfields/internal/ocr"
	"docfields/internal/port"
	"docfields/mocks"
)

func engine(name string) *mocks.MockOCRBackend {
	m := new(mocks.MockOCRBackend)
	m.On("Name").Return(name)
	return m
}

var scan = port.OCRInput{Filename: "scan.png", Content: []byte{1, 2, 3}}

func TestFallback_FirstEngineSucceeds(t *testing.T) {
	first, second := engine("a"), engine("b")
	first.On("Recognize", mock.Anything, scan).Return(&port.OCRResult{RawText: "ok"}, nil)

	f := ocr.NewFallbackBackend([]port.OCRBackend{first, second}, time.Minute, nil)
	out, err := f.Recognize(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.RawText)
	assert.Equal(t, "a", out.EngineName)
	second.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything)
}

func TestFallback_UnavailableOpensCircuit(t *testing.T) {
	first, second := engine("a"), engine("b")
	first.On("Recognize", mock.Anything, scan).
		Return(nil, ocr.NewUnavailableError("a", errors.New("down"), 0)).Once()
	second.On("Recognize", mock.Anything, scan).Return(&port.OCRResult{RawText: "from b", EngineName: "b"}, nil)

	f := ocr.NewFallbackBackend([]port.OCRBackend{first, second}, time.Hour, nil)
	for i := 0; i < 2; i++ {
		out, err := f.Recognize(context.Background(), scan)
		require.NoError(t, err)
		assert.Equal(t, "from b", out.RawText)
	}
	first.AssertNumberOfCalls(t, "Recognize", 1)
	second.AssertNumberOfCalls(t, "Recognize", 2)
}

func TestFallback_AllUnavailable(t *testing.T) {
	only := engine("a")
	only.On("Recognize", mock.Anything, scan).
		Return(nil, ocr.NewUnavailableError("a", errors.New("down"), 10*time.Second)).Once()

	f := ocr.NewFallbackBackend([]port.OCRBackend{only}, time.Hour, nil)
	_, err := f.Recognize(context.Background(), scan)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	// circuit open: engine is not called again
	_, err = f.Recognize(context.Background(), scan)
	var ue *ocr.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "all", ue.Engine)
	assert.LessOrEqual(t, ue.RetryAfter, 10*time.Second)
	only.AssertNumberOfCalls(t, "Recognize", 1)
}

func TestFallback_OrdinaryFailureKeepsCause(t *testing.T) {
	first, second := engine("a"), engine("b")
	first.On("Recognize", mock.Anything, scan).Return(nil, errors.New("boom"))
	second.On("Recognize", mock.Anything, scan).
		Return(nil, domain.NewInputDecodeError("scan.png", errors.New("bad image")))

	f := ocr.NewFallbackBackend([]port.OCRBackend{first, second}, time.Hour, nil)
	_, err := f.Recognize(context.Background(), scan)
	assert.ErrorIs(t, err, domain.ErrInputDecode)
	assert.NotErrorIs(t, err, domain.ErrBackendUnavailable)

	// ordinary failures do not open the circuit
	_, _ = f.Recognize(context.Background(), scan)
	first.AssertNumberOfCalls(t, "Recognize", 2)
}

func TestFallback_NoEngines(t *testing.T) {
	f := ocr.NewFallbackBackend(nil, 0, nil)
	_, err := f.Recognize(context.Background(), scan)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}
