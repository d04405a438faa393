package entity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docfields/internal/document"
	"docfields/internal/domain"
	"docfields/internal/entity"
	"docfields/internal/port"
	"docfields/mocks"
)

func TestAnnotator_NilRecognizerIsUnavailable(t *testing.T) {
	a := entity.NewAnnotator(nil, 0, nil)

	ents, err := a.Annotate(context.Background(), "Date: 2024-01-15")
	assert.Nil(t, ents)
	assert.ErrorIs(t, err, domain.ErrEntityUnavailable)
	assert.False(t, a.Available())
}

func TestAnnotator_RecognizerErrorIsUnavailable(t *testing.T) {
	rec := new(mocks.MockEntityRecognizer)
	rec.On("Name").Return("broken")
	rec.On("Recognize", mock.Anything, "text").Return(nil, errors.New("model not loaded"))

	a := entity.NewAnnotator(rec, time.Second, nil)
	_, err := a.Annotate(context.Background(), "text")

	assert.ErrorIs(t, err, domain.ErrEntityUnavailable)
	rec.AssertExpectations(t)
}

type blockingRecognizer struct{}

func (blockingRecognizer) Name() string { return "blocking" }

func (blockingRecognizer) Recognize(ctx context.Context, _ string) ([]port.Entity, error) {
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	return nil, nil
}

func TestAnnotator_TimeoutIsUnavailable(t *testing.T) {
	a := entity.NewAnnotator(blockingRecognizer{}, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := a.Annotate(context.Background(), "anything")

	assert.ErrorIs(t, err, domain.ErrEntityUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

type panickingRecognizer struct{}

func (panickingRecognizer) Name() string { return "panicky" }

func (panickingRecognizer) Recognize(context.Context, string) ([]port.Entity, error) {
	panic("boom")
}

func TestAnnotator_PanicIsUnavailable(t *testing.T) {
	a := entity.NewAnnotator(panickingRecognizer{}, time.Second, nil)

	_, err := a.Annotate(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEntityUnavailable)
}

func TestAnnotator_SortsAndDropsInvalidSpans(t *testing.T) {
	rec := new(mocks.MockEntityRecognizer)
	rec.On("Name").Return("stub")
	rec.On("Recognize", mock.Anything, "abcdefghij").Return([]port.Entity{
		{Type: "money", Span: document.Span{Start: 5, End: 8}, Text: "fgh"},
		{Type: "DATE", Span: document.Span{Start: 0, End: 3}, Text: "abc"},
		{Type: "DATE", Span: document.Span{Start: 8, End: 40}, Text: "out of range"},
	}, nil)

	a := entity.NewAnnotator(rec, time.Second, nil)
	ents, err := a.Annotate(context.Background(), "abcdefghij")
	require.NoError(t, err)

	require.Len(t, ents, 2)
	assert.Equal(t, "DATE", ents[0].Type)
	assert.Equal(t, "MONEY", ents[1].Type)
}

func TestLazy_AnnotatesOnce(t *testing.T) {
	rec := new(mocks.MockEntityRecognizer)
	rec.On("Name").Return("stub")
	rec.On("Recognize", mock.Anything, "text").Return([]port.Entity{}, nil).Once()

	lazy := entity.NewLazy(entity.NewAnnotator(rec, time.Second, nil), "text")
	for i := 0; i < 3; i++ {
		_, err := lazy.Get(context.Background())
		require.NoError(t, err)
	}
	rec.AssertNumberOfCalls(t, "Recognize", 1)
}

func TestFilter_LabelFamilies(t *testing.T) {
	ents := []port.Entity{
		{Type: "DATE"}, {Type: "TIME"}, {Type: "LOC"}, {Type: "GPE"}, {Type: "PHONE"},
	}

	assert.Len(t, entity.Filter(ents, "date"), 2)
	assert.Len(t, entity.Filter(ents, "GPE"), 2)
	assert.Len(t, entity.Filter(ents, "PHONE"), 1)
	assert.Empty(t, entity.Filter(ents, "MONEY"))
}
