package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/runway"
)

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "services.db"), nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return database.NewStore(db)
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func noSleep(context.Context, time.Duration) error { return nil }

func outputJSON(url string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`[%q]`, url))
}

// fakeAPI stands in for the video generation service.
type fakeAPI struct {
	mu        sync.Mutex
	noKey     bool
	failFor   map[string]bool
	createErr error
	created   []runway.ImageToVideoRequest
	waitTask  func(id string) (*runway.Task, error)
	tasks     []*runway.Task
	getCalls  int
}

func (f *fakeAPI) HasAPIKey() bool { return !f.noKey }

func (f *fakeAPI) CreateImageToVideo(_ context.Context, in runway.ImageToVideoRequest) (*runway.TaskCreated, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.failFor[in.PromptText] {
		return nil, errors.New("rejected by upstream")
	}
	f.created = append(f.created, in)
	return &runway.TaskCreated{ID: fmt.Sprintf("task-%d", len(f.created))}, nil
}

func (f *fakeAPI) GetTask(_ context.Context, id string) (*runway.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if len(f.tasks) == 0 {
		return &runway.Task{ID: id, Status: runway.StatusRunning}, nil
	}
	task := f.tasks[0]
	if len(f.tasks) > 1 {
		f.tasks = f.tasks[1:]
	}
	if task == nil {
		return nil, errors.New("transient")
	}
	copied := *task
	copied.ID = id
	return &copied, nil
}

func (f *fakeAPI) WaitForTask(_ context.Context, id string, _, _ time.Duration) (*runway.Task, error) {
	if f.waitTask != nil {
		return f.waitTask(id)
	}
	return &runway.Task{ID: id, Status: runway.StatusSucceeded, Output: outputJSON("https://cdn.example/" + id + ".mp4")}, nil
}

func (f *fakeAPI) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeDeriver struct {
	mu      sync.Mutex
	derived int
}

func (d *fakeDeriver) Derive(context.Context, []byte) string {
	d.mu.Lock()
	d.derived++
	d.mu.Unlock()
	return "slow push in across the living room"
}

func (d *fakeDeriver) Improve(_ context.Context, original, feedback string) string {
	return original + " / " + feedback
}

// fakeObjectStore records uploads and fails the first failures calls.
type fakeObjectStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	objects  map[string][]byte
}

func (s *fakeObjectStore) Upload(path string, body io.Reader, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("storage unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[path] = data
	return nil
}

type recordedEvent struct {
	channel string
	event   string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) PublishOrderEvent(orderID uint, event string, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{channel: fmt.Sprintf("order:%d", orderID), event: event})
	return nil
}

func (p *fakePublisher) PublishUserEvent(userID uint, event string, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{channel: fmt.Sprintf("user:%d", userID), event: event})
	return nil
}

func (p *fakePublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.event == event {
			n++
		}
	}
	return n
}

// pipeline wires the services over one store.
type pipeline struct {
	store      *database.Store
	api        *fakeAPI
	storage    *fakeObjectStore
	events     *fakePublisher
	deriver    *fakeDeriver
	driver     *Driver
	reconciler *Reconciler
	processor  *Processor
	runner     *Runner
}

func newPipeline(t *testing.T, mode GenerationMode) *pipeline {
	t.Helper()
	p := &pipeline{
		store:   newTestStore(t),
		api:     &fakeAPI{},
		events:  &fakePublisher{},
		deriver: &fakeDeriver{},
		runner:  NewRunner(nil),
	}
	p.driver = NewDriver(DriverConfig{API: p.api, Mode: mode, Model: "gen4_turbo"})
	p.reconciler = NewReconciler(ReconcilerConfig{
		Store:  p.store,
		API:    p.api,
		Mode:   mode,
		Events: p.events,
		Sleep:  noSleep,
		Archiver: NewArchiver(ArchiverConfig{
			Store:      p.store,
			RootFolder: "/quantumtour",
			Sleep:      noSleep,
		}),
	})
	p.processor = NewProcessor(ProcessorConfig{
		Store:       p.store,
		Deriver:     p.deriver,
		Driver:      p.driver,
		Reconciler:  p.reconciler,
		Events:      p.events,
		Concurrency: 2,
	})
	return p
}

func (p *pipeline) seedOrder(t *testing.T, userID *uint, images int) (*models.Order, []models.Video) {
	t.Helper()
	ctx := context.Background()
	order := &models.Order{UserID: userID, Package: models.PackageStarter}
	require.NoError(t, p.store.CreateOrder(ctx, order))
	videos := make([]models.Video, 0, images)
	for i := 0; i < images; i++ {
		img := &models.UploadedImage{Filename: fmt.Sprintf("room_%d.png", i), Content: pngBytes(t, 64, 36)}
		video, err := p.store.CreateImageWithVideo(ctx, order, img, "")
		require.NoError(t, err)
		videos = append(videos, *video)
	}
	return order, videos
}

func (p *pipeline) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: &email}
	require.NoError(t, p.store.CreateUser(context.Background(), user))
	return user
}
