package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
)

func newRevisions(p *pipeline) *RevisionService {
	return NewRevisionService(RevisionConfig{
		Store:      p.store,
		Deriver:    p.deriver,
		Driver:     p.driver,
		Reconciler: p.reconciler,
	})
}

func TestRegenerate_CreatesNextIteration(t *testing.T) {
	p := newPipeline(t, ModeMock)
	ctx := context.Background()
	_, videos := p.seedOrder(t, nil, 1)
	first := videos[0]

	result, err := newRevisions(p).Regenerate(ctx, first.ImageID, "  slow orbit around the island  ")
	require.NoError(t, err)
	assert.Equal(t, models.VideoSucceeded, result.Status)
	assert.Equal(t, 2, result.Video.Iteration)
	require.NotNil(t, result.Video.ParentVideoID)
	assert.Equal(t, first.ID, *result.Video.ParentVideoID)
	assert.Equal(t, "slow orbit around the island", result.Video.Prompt)

	image, err := p.store.GetImage(ctx, first.ImageID)
	require.NoError(t, err)
	assert.Equal(t, "slow orbit around the island", *image.Prompt)

	again, err := newRevisions(p).Regenerate(ctx, first.ImageID, "pull back")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Video.Iteration)
}

func TestRegenerate_Validation(t *testing.T) {
	p := newPipeline(t, ModeMock)
	_, err := newRevisions(p).Regenerate(context.Background(), 1, " ")
	assert.ErrorIs(t, err, ErrPromptRequired)

	_, err = newRevisions(p).Regenerate(context.Background(), 999, "pan")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRegenerate_GenerationFailure(t *testing.T) {
	p := newPipeline(t, ModeLive)
	p.api.failFor = map[string]bool{"doomed": true}
	_, videos := p.seedOrder(t, nil, 1)

	result, err := newRevisions(p).Regenerate(context.Background(), videos[0].ImageID, "doomed")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	require.NotNil(t, result)
	assert.Equal(t, models.VideoFailed, result.Status)
	assert.Equal(t, models.VideoFailed, result.Video.Status)
}

func TestSubmitFeedback_CreatesChildIteration(t *testing.T) {
	p := newPipeline(t, ModeMock)
	ctx := context.Background()
	_, videos := p.seedOrder(t, nil, 1)
	require.NoError(t, p.store.SetVideoPrompt(ctx, videos[0].ID, "push in on the kitchen"))

	result, err := newRevisions(p).SubmitFeedback(ctx, videos[0].ID, "make it slower")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Video.Iteration)
	assert.Equal(t, "push in on the kitchen / make it slower", result.Video.Prompt)
	require.NotNil(t, result.Feedback)
	assert.Equal(t, videos[0].ID, result.Feedback.VideoID)
	assert.Equal(t, result.Video.Prompt, result.Feedback.NewPrompt)
	assert.Equal(t, models.VideoSucceeded, result.Status)

	_, err = newRevisions(p).SubmitFeedback(ctx, videos[0].ID, "")
	assert.ErrorIs(t, err, ErrFeedbackRequired)
}
