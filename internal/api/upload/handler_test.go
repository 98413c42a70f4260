package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"docqa/internal/api/session"
	"docqa/internal/core/chat"
	"docqa/internal/core/memory"
	"docqa/internal/database/model"
	"docqa/internal/services/ingest"
	"docqa/pkg/apperror"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngestor struct {
	path, name, key string
	processed       []int64
	forced          bool
	err             error
}

func (f *fakeIngestor) Register(_ context.Context, path, originalName, storageKey string) (*model.Document, error) {
	f.path, f.name, f.key = path, originalName, storageKey
	return &model.Document{ID: 42, FilePath: &path}, nil
}

func (f *fakeIngestor) Process(_ context.Context, doc *model.Document, force bool) (ingest.Result, error) {
	f.processed = append(f.processed, doc.ID)
	f.forced = force
	if f.err != nil {
		return ingest.Result{}, f.err
	}
	return ingest.Result{Document: doc, Chunks: 3}, nil
}

type fakeAsker struct {
	conv *memory.Conversation
	req  chat.Request
}

func (f *fakeAsker) Ask(_ context.Context, conv *memory.Conversation, req chat.Request) (chat.Response, error) {
	f.conv, f.req = conv, req
	return chat.Response{
		Answer:          "A course handbook.",
		SourceDocuments: []chat.SourceDocument{{Source: "/data/x.txt", ChunkID: 0}},
	}, nil
}

type fakeSessions struct {
	store *memory.Store
	reset []string
}

func (f *fakeSessions) Get(id string) *memory.Conversation { return f.store.Get(id) }

func (f *fakeSessions) Reset(id string) {
	f.reset = append(f.reset, id)
	f.store.Reset(id)
}

type fixture struct {
	app      *fiber.App
	dir      string
	ingestor *fakeIngestor
	asker    *fakeAsker
	sessions *fakeSessions
	mirrored []string
}

func newFixture(t *testing.T, mirror bool) *fixture {
	t.Helper()
	store, err := memory.NewStore(4)
	require.NoError(t, err)
	f := &fixture{
		dir:      t.TempDir(),
		ingestor: &fakeIngestor{},
		asker:    &fakeAsker{},
		sessions: &fakeSessions{store: store},
	}
	h := &Handler{
		Ingestor:     f.ingestor,
		Chain:        f.asker,
		Sessions:     f.sessions,
		DataDir:      f.dir,
		AutoQuestion: "What is this document about?",
	}
	if mirror {
		h.Mirror = func(_ context.Context, key, _, contentType string) (string, error) {
			f.mirrored = append(f.mirrored, key+"|"+contentType)
			return "s3://bucket/" + key, nil
		}
	}
	f.app = fiber.New()
	RegisterRoutes(f.app, h)
	return f
}

func (f *fixture) upload(t *testing.T, filename string, content []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		w, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/upload", &buf)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(session.Header, "s1")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

var storedName = regexp.MustCompile(`^[0-9a-f]{32}\.txt$`)

func TestHandleUpload(t *testing.T) {
	t.Run("ShouldStoreIngestAndAutoAsk", func(t *testing.T) {
		f := newFixture(t, true)

		resp, body := f.upload(t, "handbook.TXT", []byte("Welcome to the course. Exams are in June."))
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

		var out uploadResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "File 'handbook.TXT' added.", out.Message)
		assert.Equal(t, int64(42), out.DocID)
		assert.Equal(t, "What is this document about?", out.AutoQuestion)
		assert.Equal(t, "A course handbook.", out.AutoAnswer)
		assert.Len(t, out.SourceDocuments, 1)

		assert.Equal(t, "handbook.TXT", f.ingestor.name)
		assert.Equal(t, f.dir, filepath.Dir(f.ingestor.path))
		assert.Regexp(t, storedName, filepath.Base(f.ingestor.path))
		assert.FileExists(t, f.ingestor.path)
		assert.Equal(t, []int64{42}, f.ingestor.processed)
		assert.False(t, f.ingestor.forced)

		require.Len(t, f.mirrored, 1)
		assert.Contains(t, f.mirrored[0], "documents/"+filepath.Base(f.ingestor.path)+"|text/plain")
		assert.Equal(t, "s3://bucket/documents/"+filepath.Base(f.ingestor.path), f.ingestor.key)

		assert.Equal(t, []string{"s1"}, f.sessions.reset)
		assert.Equal(t, []int64{42}, f.asker.req.Filters.DocIDs)
		assert.NotSame(t, f.sessions.Get("s1"), f.asker.conv)
	})

	t.Run("ShouldRejectMissingFile", func(t *testing.T) {
		f := newFixture(t, false)
		resp, _ := f.upload(t, "", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ShouldRejectUnsupportedExtension", func(t *testing.T) {
		f := newFixture(t, false)
		resp, body := f.upload(t, "photo.png", []byte("png"))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		var e apperror.ErrorResponse
		require.NoError(t, json.Unmarshal(body, &e))
		assert.Equal(t, "AI-2", e.ErrorCode)
		assert.Empty(t, f.ingestor.processed)
	})

	t.Run("ShouldRejectEmptyFile", func(t *testing.T) {
		f := newFixture(t, false)
		resp, _ := f.upload(t, "empty.txt", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ShouldRejectContentThatDoesNotMatchExtension", func(t *testing.T) {
		f := newFixture(t, false)
		resp, _ := f.upload(t, "report.pdf", []byte("just some plain text"))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		entries, err := os.ReadDir(f.dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("ShouldFailWhenIngestFails", func(t *testing.T) {
		f := newFixture(t, false)
		f.ingestor.err = errors.New("embedding quota")
		resp, body := f.upload(t, "a.txt", []byte("Some text."))
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		var e apperror.ErrorResponse
		require.NoError(t, json.Unmarshal(body, &e))
		assert.Equal(t, "AI-1002", e.ErrorCode)
		assert.Empty(t, f.sessions.reset)
	})
}
