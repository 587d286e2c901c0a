package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tour-video-backend/internal/media"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/runway"
)

func TestDriver_MockMode(t *testing.T) {
	api := &fakeAPI{}
	driver := NewDriver(DriverConfig{API: api, Mode: ModeMock})

	out := driver.Generate(context.Background(), GenerateRequest{Image: pngBytes(t, 40, 80), Prompt: "x"})
	assert.Equal(t, models.VideoSucceeded, out.Status)
	assert.True(t, strings.HasPrefix(out.JobID, "mock-job-"))
	assert.Empty(t, out.MediaURL)
	assert.Equal(t, media.RatioPortrait, out.Aspect)
	assert.Zero(t, api.createdCount())
}

func TestDriver_LiveWaitSucceeds(t *testing.T) {
	api := &fakeAPI{}
	driver := NewDriver(DriverConfig{API: api, Mode: ModeLive, Model: "gen4_turbo", Duration: 5})

	out := driver.Generate(context.Background(), GenerateRequest{Image: pngBytes(t, 80, 40), Prompt: "pan left", Wait: true})
	assert.Equal(t, models.VideoSucceeded, out.Status)
	assert.Equal(t, "task-1", out.JobID)
	assert.Equal(t, "https://cdn.example/task-1.mp4", out.MediaURL)

	require.Len(t, api.created, 1)
	sent := api.created[0]
	assert.Equal(t, media.RatioLandscape, sent.Ratio)
	assert.Equal(t, "gen4_turbo", sent.Model)
	assert.Equal(t, 5, sent.Duration)
	assert.True(t, strings.HasPrefix(sent.PromptImage, "data:image/"))
}

func TestDriver_OnSubmittedRunsBeforeWait(t *testing.T) {
	var steps []string
	api := &fakeAPI{waitTask: func(id string) (*runway.Task, error) {
		steps = append(steps, "wait:"+id)
		return &runway.Task{ID: id, Status: runway.StatusSucceeded, Output: outputJSON("https://cdn.example/x.mp4")}, nil
	}}
	driver := NewDriver(DriverConfig{API: api, Mode: ModeLive})

	out := driver.Generate(context.Background(), GenerateRequest{
		Image: pngBytes(t, 80, 40),
		Wait:  true,
		OnSubmitted: func(_ context.Context, jobID string) {
			steps = append(steps, "submitted:"+jobID)
		},
	})
	assert.Equal(t, models.VideoSucceeded, out.Status)
	assert.Equal(t, []string{"submitted:task-1", "wait:task-1"}, steps)

	called := false
	rejecting := NewDriver(DriverConfig{API: &fakeAPI{createErr: errors.New("boom")}, Mode: ModeLive})
	out = rejecting.Generate(context.Background(), GenerateRequest{
		Image:       pngBytes(t, 10, 10),
		Wait:        true,
		OnSubmitted: func(context.Context, string) { called = true },
	})
	assert.Equal(t, models.VideoFailed, out.Status)
	assert.False(t, called)
}

func TestDriver_NoWaitReturnsHandle(t *testing.T) {
	driver := NewDriver(DriverConfig{API: &fakeAPI{}, Mode: ModeLive})
	out := driver.Generate(context.Background(), GenerateRequest{Image: pngBytes(t, 10, 10)})
	assert.Equal(t, models.VideoProcessing, out.Status)
	assert.Equal(t, "task-1", out.JobID)
}

func TestDriver_WaitTimeoutStaysProcessing(t *testing.T) {
	api := &fakeAPI{waitTask: func(string) (*runway.Task, error) { return nil, runway.ErrWaitTimeout }}
	driver := NewDriver(DriverConfig{API: api, Mode: ModeLive})
	out := driver.Generate(context.Background(), GenerateRequest{Image: pngBytes(t, 10, 10), Wait: true})
	assert.Equal(t, models.VideoProcessing, out.Status)
	assert.Equal(t, "task-1", out.JobID)
}

func TestDriver_Failures(t *testing.T) {
	img := func() []byte { return pngBytes(t, 10, 10) }
	cases := []struct {
		name string
		api  *fakeAPI
		req  GenerateRequest
	}{
		{"missing key", &fakeAPI{noKey: true}, GenerateRequest{Image: img(), Wait: true}},
		{"submission error", &fakeAPI{createErr: errors.New("boom")}, GenerateRequest{Image: img(), Wait: true}},
		{"undecodable image", &fakeAPI{}, GenerateRequest{Image: []byte("nope"), Wait: true}},
		{"succeeded without output", &fakeAPI{waitTask: func(id string) (*runway.Task, error) {
			return &runway.Task{ID: id, Status: runway.StatusSucceeded}, nil
		}}, GenerateRequest{Image: img(), Wait: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := NewDriver(DriverConfig{API: tc.api, Mode: ModeLive}).Generate(context.Background(), tc.req)
			assert.Equal(t, models.VideoFailed, out.Status)
			assert.Empty(t, out.JobID)
			assert.Empty(t, out.MediaURL)
			assert.NotEmpty(t, out.Reason)
		})
	}
}

func TestDriver_RemoteFailureKeepsHandle(t *testing.T) {
	api := &fakeAPI{waitTask: func(id string) (*runway.Task, error) {
		return &runway.Task{ID: id, Status: runway.StatusFailed, Failure: "content moderation"}, nil
	}}
	out := NewDriver(DriverConfig{API: api}).Generate(context.Background(), GenerateRequest{Image: pngBytes(t, 10, 10), Wait: true})
	assert.Equal(t, models.VideoFailed, out.Status)
	assert.Equal(t, "task-1", out.JobID)
	assert.Equal(t, "content moderation", out.Reason)
}

func TestNormalizeJobStatus(t *testing.T) {
	cases := map[string]models.VideoStatus{
		"SUCCEEDED": models.VideoSucceeded,
		"failed":    models.VideoFailed,
		"CANCELLED": models.VideoFailed,
		"RUNNING":   models.VideoProcessing,
		"PENDING":   models.VideoProcessing,
		"THROTTLED": models.VideoProcessing,
	}
	for raw, want := range cases {
		got, ok := NormalizeJobStatus(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := NormalizeJobStatus("exploded")
	assert.False(t, ok)
}
