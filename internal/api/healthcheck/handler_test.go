package healthcheck

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMilvus struct{ err error }

func (f fakeMilvus) HasCollection(context.Context, string) (bool, error) { return true, f.err }

func TestHealthChecks(t *testing.T) {
	cases := []struct {
		name   string
		h      *Handler
		path   string
		status int
	}{
		{"api", &Handler{}, "/health/api", fiber.StatusOK},
		{"database ok", &Handler{PingDB: func(context.Context) error { return nil }}, "/health/database", fiber.StatusOK},
		{"database down", &Handler{PingDB: func(context.Context) error { return errors.New("refused") }}, "/health/database", fiber.StatusInternalServerError},
		{"milvus ok", &Handler{Milvus: fakeMilvus{}}, "/health/milvus", fiber.StatusOK},
		{"milvus down", &Handler{Milvus: fakeMilvus{err: errors.New("unavailable")}}, "/health/milvus", fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			RegisterRoutes(app, tc.h)
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tc.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
