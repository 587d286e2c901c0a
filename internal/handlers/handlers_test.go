package handlers_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"tour-video-backend/internal/middleware"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	w := env.getJSON("/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[models.HealthResponse](t, w).Status)
}

func TestUpload_GuestBatchCompletes(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, "starter", 5, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	resp := decode[models.UploadResponse](t, w)
	assert.Equal(t, models.PackageStarter, resp.Package)
	assert.Equal(t, []string{"drone", "music"}, resp.AddOns)
	assert.Equal(t, models.OrderSubmitted, resp.Status)
	require.Len(t, resp.Images, 5)
	assert.Equal(t, "room-0.png", resp.Images[0].Filename)

	env.runner.Wait()

	w = env.getJSON(fmt.Sprintf("/api/v1/orders/%d/status", resp.OrderID), "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[models.OrderStatusResponse](t, w)
	assert.Equal(t, models.OrderCompleted, status.Status)
}

func TestUpload_RejectsPackageSize(t *testing.T) {
	env := newTestEnv(t)

	for _, count := range []int{4, 11} {
		w := env.upload(t, "starter", count, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "count %d", count)
	}

	w := env.upload(t, "platinum", 5, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_NoFiles(t *testing.T) {
	env := newTestEnv(t)
	w := env.upload(t, "starter", 0, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_InvalidTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	w := env.upload(t, "starter", 5, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderStatus_Access(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner@example.com")
	ownerToken := env.token(t, middleware.Identity{UserID: owner.ID, Email: "owner@example.com"})

	w := env.upload(t, "starter", 5, ownerToken)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	orderID := decode[models.UploadResponse](t, w).OrderID
	env.runner.Wait()

	path := fmt.Sprintf("/api/v1/orders/%d/status", orderID)
	assert.Equal(t, http.StatusOK, env.getJSON(path, ownerToken).Code)
	assert.Equal(t, http.StatusForbidden, env.getJSON(path, "").Code)

	stranger := env.token(t, middleware.Identity{UserID: owner.ID + 50})
	assert.Equal(t, http.StatusForbidden, env.getJSON(path, stranger).Code)

	admin := env.token(t, middleware.Identity{UserID: 999, Email: "boss@example.com"})
	assert.Equal(t, http.StatusOK, env.getJSON(path, admin).Code)

	assert.Equal(t, http.StatusNotFound, env.getJSON("/api/v1/orders/4242/status", admin).Code)
	assert.Equal(t, http.StatusBadRequest, env.getJSON("/api/v1/orders/abc/status", admin).Code)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusUnauthorized, env.getJSON("/api/v1/orders", "").Code)

	user := env.seedUser(t, "agent@example.com")
	token := env.token(t, middleware.Identity{UserID: user.ID})
	require.Equal(t, http.StatusAccepted, env.upload(t, "starter", 5, token).Code)
	env.runner.Wait()

	w := env.getJSON("/api/v1/orders", token)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.OrderListResponse](t, w)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, models.OrderCompleted, list.Orders[0].Status)
	require.Len(t, list.Orders[0].Videos, 5)
	for _, v := range list.Orders[0].Videos {
		assert.Equal(t, models.VideoSucceeded, v.Status)
		assert.Equal(t, 1, v.Iteration)
		assert.NotNil(t, v.VideoID)
	}

	w = env.getJSON("/api/v1/notifications", token)
	require.Equal(t, http.StatusOK, w.Code)
	notifications := decode[models.NotificationListResponse](t, w)
	require.NotEmpty(t, notifications.Notifications)

	first := notifications.Notifications[0]
	w = env.postJSON(fmt.Sprintf("/api/v1/notifications/%d/read", first.ID), nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.postJSON("/api/v1/notifications/99999/read", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.getJSON("/api/v1/download-center", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.DownloadCenterResponse](t, w).Videos)
}

func TestRunwayWebhook_AlwaysAcknowledges(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/runway", bytes.NewBufferString("{not json"))
	w := env.do(req, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = env.postJSON("/api/v1/webhooks/runway", map[string]any{"id": "unknown-job", "status": "SUCCEEDED"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRunwayWebhook_AppliesTerminalState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := &models.Order{Package: models.PackageStarter}
	require.NoError(t, env.store.CreateOrder(ctx, order))
	video, err := env.store.CreateImageWithVideo(ctx, order, &models.UploadedImage{Filename: "hall.png", Content: pngBytes(t, 32, 32)}, "pan left")
	require.NoError(t, err)
	_, err = env.store.MarkVideoProcessing(ctx, video.ID, "job-77")
	require.NoError(t, err)

	w := env.postJSON("/api/v1/webhooks/runway", map[string]any{
		"job_id": "job-77",
		"status": "SUCCEEDED",
		"output": []string{"https://cdn.example.com/job-77.mp4"},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	reloaded, err := env.store.GetVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoSucceeded, reloaded.Status)
	require.NotNil(t, reloaded.VideoURL)
	assert.Equal(t, "https://cdn.example.com/job-77.mp4", *reloaded.VideoURL)

	// A late failure for the same job is ignored.
	w = env.postJSON("/api/v1/webhooks/runway", map[string]any{"id": "job-77", "status": "FAILED"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	reloaded, err = env.store.GetVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoSucceeded, reloaded.Status)
}

func TestSubmitFeedback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.seedUser(t, "owner@example.com")
	ownerToken := env.token(t, middleware.Identity{UserID: owner.ID})

	w := env.upload(t, "starter", 5, ownerToken)
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[models.UploadResponse](t, w)
	env.runner.Wait()
	videoID := resp.Images[0].VideoID

	w = env.postJSON("/api/v1/feedback", models.FeedbackRequest{VideoID: videoID, FeedbackText: "slower pan"}, ownerToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fb := decode[models.FeedbackResponse](t, w)
	assert.NotZero(t, fb.FeedbackID)
	assert.Contains(t, fb.NewPrompt, "slower pan")
	assert.Equal(t, 2, fb.Video.Iteration)
	assert.Equal(t, models.VideoSucceeded, fb.Video.Status)
	require.NotNil(t, fb.Video.ParentVideoID)
	assert.Equal(t, videoID, *fb.Video.ParentVideoID)

	latest, err := env.store.LatestVideoForImage(ctx, resp.Images[0].ImageID)
	require.NoError(t, err)
	assert.Equal(t, fb.Video.ID, latest.ID)

	w = env.postJSON("/api/v1/feedback", models.FeedbackRequest{VideoID: videoID, FeedbackText: "  "}, ownerToken)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.postJSON("/api/v1/feedback", models.FeedbackRequest{VideoID: 9999, FeedbackText: "x"}, ownerToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitFeedback_GuestVideo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := env.upload(t, "starter", 5, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	videoID := decode[models.UploadResponse](t, w).Images[0].VideoID
	env.runner.Wait()

	w = env.postJSON("/api/v1/feedback", models.FeedbackRequest{VideoID: videoID, FeedbackText: "brighter"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	user := env.token(t, middleware.Identity{UserID: 7, Email: "agent@example.com"})
	w = env.postJSON("/api/v1/feedback", models.FeedbackRequest{VideoID: videoID, FeedbackText: "brighter"}, user)
	assert.Equal(t, http.StatusForbidden, w.Code)

	totals, err := env.store.CountTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), totals.Videos)

	admin := env.token(t, middleware.Identity{UserID: 2, Email: "boss@example.com"})
	w = env.postJSON("/api/v1/feedback", models.FeedbackRequest{VideoID: videoID, FeedbackText: "brighter"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[models.FeedbackResponse](t, w).Video.Iteration)
}

func TestSubmitFeedback_OtherUsersVideo(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner@example.com")
	ownerToken := env.token(t, middleware.Identity{UserID: owner.ID})

	w := env.upload(t, "starter", 5, ownerToken)
	require.Equal(t, http.StatusAccepted, w.Code)
	videoID := decode[models.UploadResponse](t, w).Images[0].VideoID
	env.runner.Wait()

	stranger := env.token(t, middleware.Identity{UserID: owner.ID + 1})
	w = env.postJSON("/api/v1/feedback", models.FeedbackRequest{VideoID: videoID, FeedbackText: "brighter"}, stranger)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	user := env.token(t, middleware.Identity{UserID: 1, Email: "agent@example.com"})
	admin := env.token(t, middleware.Identity{UserID: 2, Email: "boss@example.com"})

	w := env.upload(t, "starter", 5, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[models.UploadResponse](t, w)
	env.runner.Wait()

	assert.Equal(t, http.StatusUnauthorized, env.getJSON("/api/v1/admin/feed", "").Code)
	assert.Equal(t, http.StatusForbidden, env.getJSON("/api/v1/admin/feed", user).Code)

	w = env.getJSON("/api/v1/admin/feed", admin)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[services.AdminFeed](t, w)
	assert.Len(t, feed.Videos, 5)
	assert.Equal(t, int64(5), feed.Counts["completed"])
	assert.Equal(t, int64(5), feed.Totals.Videos)

	imagePath := fmt.Sprintf("/api/v1/admin/images/%d", resp.Images[0].ImageID)

	w = env.postJSON(imagePath+"/status", models.ImageStatusRequest{Status: "failed"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.VideoFailed, decode[models.VideoResponse](t, w).Status)

	w = env.postJSON(imagePath+"/status", models.ImageStatusRequest{Status: "bogus"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.postJSON(imagePath+"/regenerate", models.RegenerateRequest{Prompt: " "}, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.postJSON(imagePath+"/regenerate", models.RegenerateRequest{Prompt: "Dolly toward the window"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	regenerated := decode[models.VideoResponse](t, w)
	assert.Equal(t, 2, regenerated.Iteration)
	assert.Equal(t, "Dolly toward the window", regenerated.Prompt)
	assert.Equal(t, models.VideoSucceeded, regenerated.Status)

	w = env.postJSON("/api/v1/admin/images/9999/regenerate", models.RegenerateRequest{Prompt: "x"}, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.getJSON("/api/v1/runway/status", admin)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[models.RunwayStatusResponse](t, w)
	assert.True(t, status.Mock)
	assert.False(t, status.APIKeyPresent)
	assert.Equal(t, "gen4_turbo", status.Model)
}

func TestCheckStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, middleware.Identity{UserID: 2, Email: "boss@example.com"})

	w := env.postJSON("/api/v1/runway/check-status", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.postJSON("/api/v1/runway/check-status?task_id=job-1&max_checks=0", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.postJSON("/api/v1/runway/check-status?task_id=job-1", nil, admin)
	require.Equal(t, http.StatusAccepted, w.Code)
	started := decode[models.PollStartedResponse](t, w)
	assert.Equal(t, models.PollStartedResponse{
		Status:              "started",
		TaskID:              "job-1",
		PollIntervalSeconds: 30,
		MaxChecks:           30,
	}, started)
	env.runner.Wait()
}

func TestStripeWebhook_ReorderFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "agent@example.com")
	token := env.token(t, middleware.Identity{UserID: user.ID})

	w := env.upload(t, "starter", 5, token)
	require.Equal(t, http.StatusAccepted, w.Code)
	parentID := decode[models.UploadResponse](t, w).OrderID
	env.runner.Wait()

	other := env.token(t, middleware.Identity{UserID: user.ID + 1})
	w = env.postJSON(fmt.Sprintf("/api/v1/orders/%d/reorder", parentID), nil, other)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.postJSON(fmt.Sprintf("/api/v1/orders/%d/reorder", parentID), nil, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	child := decode[models.OrderResponse](t, w)
	require.NotNil(t, child.ParentOrderID)
	assert.Equal(t, parentID, *child.ParentOrderID)

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_test",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test", "object": "checkout.session",
			"metadata": {"order_id": "%d", "user_id": "%d", "addon_type": "reorder"}}}
	}`, child.ID, user.ID))

	// Two deliveries of the same event run the batch once.
	for i := 0; i < 2; i++ {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(signed.Payload))
		req.Header.Set("Stripe-Signature", signed.Header)
		w = env.do(req, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		env.runner.Wait()
	}

	w = env.getJSON(fmt.Sprintf("/api/v1/orders/%d", child.ID), token)
	require.Equal(t, http.StatusOK, w.Code)
	reordered := decode[models.OrderResponse](t, w)
	assert.Equal(t, models.OrderCompleted, reordered.Status)
	require.Len(t, reordered.Videos, 5)
	for _, v := range reordered.Videos {
		assert.Equal(t, 1, v.Iteration)
	}
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBufferString(`{"id":"evt"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := env.do(req, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON("/api/v1/auth/forgot-password", models.ForgotPasswordRequest{Email: "nobody@example.com"}, "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = env.postJSON("/api/v1/auth/reset-password", models.ResetPasswordRequest{Token: "missing", NewPassword: "long-enough"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.postJSON("/api/v1/auth/reset-password", models.ResetPasswordRequest{Token: "missing", NewPassword: "short"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.postJSON("/api/v1/auth/reset-password", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
