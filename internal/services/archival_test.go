package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSlugify(t *testing.T) {
	assert.Equal(t, "jane.doe", Slugify("Jane.Doe@Example.com"))
	assert.Equal(t, "mary_ann_o_neil", Slugify("Mary Ann O'Neil"))
	assert.Equal(t, "a_b", Slugify("  a  !! b  "))
	assert.Equal(t, "", Slugify(""))
	assert.Equal(t, "", Slugify("@example.com"))
	assert.Equal(t, "x", Slugify("__x--"))
}

func TestFolderName(t *testing.T) {
	assert.Equal(t, "jane.doe", FolderName(7, strPtr("Jane.Doe@Example.com"), strPtr("Jane")))
	assert.Equal(t, "jane_smith", FolderName(7, strPtr("   "), strPtr("Jane Smith")))
	assert.Equal(t, "user_7", FolderName(7, nil, nil))
	assert.Equal(t, "user_7", FolderName(7, strPtr(""), strPtr("!!!")))
}

func TestArchiver_Destination(t *testing.T) {
	store := newTestStore(t)
	p := &pipeline{store: store}
	user := p.seedUser(t, "Jane.Doe@Example.com")

	archiver := NewArchiver(ArchiverConfig{Store: store, RootFolder: "/quantumtour"})
	ctx := context.Background()
	assert.Equal(t, "/quantumtour/jane.doe/video output/video_12.mp4", archiver.Destination(ctx, &user.ID, 12))
	assert.Equal(t, "/quantumtour/video output/video_12.mp4", archiver.Destination(ctx, nil, 12))

	missing := user.ID + 50
	assert.Equal(t, fmt.Sprintf("/quantumtour/user_%d/video output/video_3.mp4", missing), archiver.Destination(ctx, &missing, 3))
}

func TestArchiver_RetriesThenSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp4-bytes"))
	}))
	defer server.Close()

	storage := &fakeObjectStore{failures: 2}
	archiver := NewArchiver(ArchiverConfig{Storage: storage, Sleep: noSleep})

	ref, err := archiver.Archive(context.Background(), Source{URL: server.URL}, "/root/u/video output/video_1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "storage:///root/u/video output/video_1.mp4", ref)
	assert.Equal(t, 3, storage.calls)
	assert.Equal(t, []byte("mp4-bytes"), storage.objects["/root/u/video output/video_1.mp4"])
}

func TestArchiver_GivesUpAfterAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp4"))
	}))
	defer server.Close()

	storage := &fakeObjectStore{failures: 10}
	archiver := NewArchiver(ArchiverConfig{Storage: storage, Attempts: 3, Sleep: noSleep})

	_, err := archiver.Archive(context.Background(), Source{URL: server.URL}, "/x.mp4")
	require.Error(t, err)
	assert.Equal(t, 3, storage.calls)
}

func TestArchiver_Disabled(t *testing.T) {
	archiver := NewArchiver(ArchiverConfig{})
	assert.False(t, archiver.Enabled())
	_, err := archiver.Archive(context.Background(), Source{URL: "http://x"}, "/x.mp4")
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	enabled := NewArchiver(ArchiverConfig{Storage: &fakeObjectStore{}})
	_, err = enabled.Archive(context.Background(), Source{}, "/x.mp4")
	assert.ErrorIs(t, err, ErrEmptySource)
}
