package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"tour-video-backend/internal/auth"
	"tour-video-backend/internal/config"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/handlers"
	"tour-video-backend/internal/middleware"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
	"tour-video-backend/internal/vision"
)

const (
	testSecret        = "test-secret-key-for-jwt-signing-must-be-long-enough"
	testWebhookSecret = "whsec_test"
)

type testEnv struct {
	router *gin.Engine
	store  *database.Store
	runner *services.Runner
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"), nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	store := database.NewStore(db)
	cfg := &config.Config{
		JWTSecret:           testSecret,
		AdminEmailsList:     []string{"boss@example.com"},
		StripeWebhookSecret: testWebhookSecret,
	}

	runner := services.NewRunner(nil)
	t.Cleanup(func() {
		runner.Wait()
		sqlDB.Close()
	})

	driver := services.NewDriver(services.DriverConfig{Mode: services.ModeMock, Model: "gen4_turbo"})
	reconciler := services.NewReconciler(services.ReconcilerConfig{
		Store: store,
		Mode:  services.ModeMock,
		Sleep: func(context.Context, time.Duration) error { return nil },
	})
	deriver := vision.NewDeriver(vision.Config{})
	processor := services.NewProcessor(services.ProcessorConfig{
		Store:      store,
		Deriver:    deriver,
		Driver:     driver,
		Reconciler: reconciler,
	})

	router := handlers.NewRouter(handlers.RouterDeps{
		Config: cfg,
		Store:  store,
		Intake: services.NewIntakeService(services.IntakeConfig{
			Store:     store,
			Processor: processor,
			Runner:    runner,
		}),
		Status: services.NewStatusService(store),
		Revisions: services.NewRevisionService(services.RevisionConfig{
			Store:      store,
			Deriver:    deriver,
			Driver:     driver,
			Reconciler: reconciler,
		}),
		Reconciler: reconciler,
		Payments: services.NewPaymentService(services.PaymentConfig{
			Store:     store,
			Processor: processor,
			Runner:    runner,
		}),
		Admin:  services.NewAdminService(store, nil),
		Driver: driver,
		Reset:  auth.NewResetService(store, auth.NewTokenStore(db, time.Hour), nil, "http://localhost/reset", nil),
		Runner: runner,
	})

	return &testEnv{router: router, store: store, runner: runner, cfg: cfg}
}

func (e *testEnv) token(t *testing.T, identity middleware.Identity) string {
	t.Helper()
	token, err := middleware.SignToken(testSecret, identity, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) getJSON(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return e.do(req, token)
}

func (e *testEnv) postJSON(path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, token)
}

func (e *testEnv) upload(t *testing.T, pkg string, count int, token string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("package", pkg))
	require.NoError(t, writer.WriteField("add_ons", "drone, music"))
	for i := 0; i < count; i++ {
		part, err := writer.CreateFormFile("files", fmt.Sprintf("room-%d.png", i))
		require.NoError(t, err)
		_, err = part.Write(pngBytes(t, 64, 36))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.do(req, token)
}

func (e *testEnv) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: &email}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, x%height, color.RGBA{R: 200, G: 120, B: 40, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
