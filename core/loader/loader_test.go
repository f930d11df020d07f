package loader_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"ckeytools/core/loader"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFeature struct {
	name    string
	enabled bool
	err     error
}

func (f *stubFeature) Name() string    { return f.name }
func (f *stubFeature) IsEnabled() bool { return f.enabled }
func (f *stubFeature) Load(app fiber.Router) error {
	if f.err != nil {
		return f.err
	}
	app.Get("/"+f.name, func(c *fiber.Ctx) error { return c.SendStatus(200) })
	return nil
}

func TestManager_LoadAll(t *testing.T) {
	app := fiber.New()
	mgr := loader.NewManager(zap.NewNop())
	mgr.Register(&stubFeature{name: "on", enabled: true})
	mgr.Register(&stubFeature{name: "off"})

	require.NoError(t, mgr.LoadAll(app))

	resp, err := app.Test(httptest.NewRequest("GET", "/on", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/off", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestManager_LoadAllFails(t *testing.T) {
	mgr := loader.NewManager(zap.NewNop())
	boom := errors.New("boom")
	mgr.Register(&stubFeature{name: "bad", enabled: true, err: boom})

	err := mgr.LoadAll(fiber.New())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "bad")
}
