package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"tour-video-backend/internal/database"
)

const (
	archiveScheme   = "storage://"
	archiveCategory = "video output"
	videoMIME       = "video/mp4"
)

var (
	ErrArchiveDisabled = errors.New("object storage is not configured")
	ErrEmptySource     = errors.New("archive source has neither url nor path")
)

// ObjectStore is the upload side of object storage.
type ObjectStore interface {
	Upload(path string, body io.Reader, contentType string) error
}

// Source locates media to archive: a remote URL or a local file.
type Source struct {
	URL  string
	Path string
}

type ArchiverConfig struct {
	Storage    ObjectStore
	Store      *database.Store
	HTTPClient *http.Client
	RootFolder string
	Attempts   int
	Sleep      func(context.Context, time.Duration) error
	Logger     *zap.Logger
}

// Archiver copies generated videos into object storage under a per-user folder.
type Archiver struct {
	storage    ObjectStore
	store      *database.Store
	httpClient *http.Client
	root       string
	attempts   int
	sleep      func(context.Context, time.Duration) error
	folders    *expirable.LRU[uint, string]
	logger     *zap.Logger
}

func NewArchiver(cfg ArchiverConfig) *Archiver {
	a := &Archiver{
		storage:    cfg.Storage,
		store:      cfg.Store,
		httpClient: cfg.HTTPClient,
		root:       cfg.RootFolder,
		attempts:   cfg.Attempts,
		sleep:      cfg.Sleep,
		folders:    expirable.NewLRU[uint, string](1024, nil, 10*time.Minute),
		logger:     cfg.Logger,
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if a.root == "" {
		a.root = "/"
	}
	if a.attempts <= 0 {
		a.attempts = 3
	}
	if a.sleep == nil {
		a.sleep = sleepContext
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// Enabled reports whether uploads can happen.
func (a *Archiver) Enabled() bool {
	return a.storage != nil
}

var disallowedFolderChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// Slugify turns a display identity into a folder segment. Emails reduce to
// their local part; runs of other characters collapse to one underscore.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if at := strings.Index(s, "@"); at >= 0 {
		s = s[:at]
	}
	s = disallowedFolderChars.ReplaceAllString(s, "_")
	return strings.Trim(s, "._-")
}

// FolderName picks the user's folder: email local part, else name, else
// user_<id>.
func FolderName(id uint, email, name *string) string {
	if email != nil {
		if slug := Slugify(*email); slug != "" {
			return slug
		}
	}
	if name != nil {
		if slug := Slugify(*name); slug != "" {
			return slug
		}
	}
	return fmt.Sprintf("user_%d", id)
}

// publicLinker is implemented by object stores that serve objects over HTTP.
type publicLinker interface {
	PublicURL(path string) string
}

// DownloadURL returns a browser-usable link for an archived destination,
// falling back to ref when the store has no public links.
func (a *Archiver) DownloadURL(destination, ref string) string {
	if linker, ok := a.storage.(publicLinker); ok {
		return linker.PublicURL(destination)
	}
	return ref
}

// CanonicalRef is the reference stored on a video once it is archived.
func CanonicalRef(destination string) string {
	return archiveScheme + destination
}

// Destination returns the archive path for a video. The user folder is left
// out when the video has no owner.
func (a *Archiver) Destination(ctx context.Context, userID *uint, videoID uint) string {
	file := fmt.Sprintf("video_%d.mp4", videoID)
	if userID == nil {
		return path.Join(a.root, archiveCategory, file)
	}
	return path.Join(a.root, a.folderFor(ctx, *userID), archiveCategory, file)
}

func (a *Archiver) folderFor(ctx context.Context, userID uint) string {
	if folder, ok := a.folders.Get(userID); ok {
		return folder
	}
	folder := fmt.Sprintf("user_%d", userID)
	if a.store != nil {
		user, err := a.store.GetUser(ctx, userID)
		if err != nil {
			a.logger.Warn("user lookup for archive folder failed", zap.Uint("user_id", userID), zap.Error(err))
			return folder
		}
		folder = FolderName(user.ID, user.Email, user.Name)
	}
	a.folders.Add(userID, folder)
	return folder
}

// Archive copies src to destination, trying up to the configured number of
// attempts, and returns the canonical reference.
func (a *Archiver) Archive(ctx context.Context, src Source, destination string) (string, error) {
	if a.storage == nil {
		return "", ErrArchiveDisabled
	}
	if src.URL == "" && src.Path == "" {
		return "", ErrEmptySource
	}

	var lastErr error
	for attempt := 1; attempt <= a.attempts; attempt++ {
		lastErr = a.copyOnce(ctx, src, destination)
		if lastErr == nil {
			a.logger.Info("video archived",
				zap.String("destination", destination),
				zap.Int("attempt", attempt))
			return CanonicalRef(destination), nil
		}
		a.logger.Warn("archive attempt failed",
			zap.String("destination", destination),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt < a.attempts {
			if err := a.sleep(ctx, time.Duration(attempt)*time.Second); err != nil {
				return "", err
			}
		}
	}

	archiveFailuresTotal.Inc()
	return "", fmt.Errorf("archive failed after %d attempts: %w", a.attempts, lastErr)
}

func (a *Archiver) copyOnce(ctx context.Context, src Source, destination string) error {
	data, err := a.read(ctx, src)
	if err != nil {
		return err
	}
	return a.storage.Upload(destination, bytes.NewReader(data), videoMIME)
}

func (a *Archiver) read(ctx context.Context, src Source) ([]byte, error) {
	if src.Path != "" {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src.Path, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download video: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video body: %w", err)
	}
	return data, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
