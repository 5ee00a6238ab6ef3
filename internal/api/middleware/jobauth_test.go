package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/solestack-project/backend/internal/config"
)

func testApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Post("/jobs/drain", JobProtected(cfg), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestJobProtectedRejectsMissingAndWrongSecret(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Env = "production"
	cfg.Sync.JobSecret = "correct-horse"
	app := testApp(cfg)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/jobs/drain", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing header must be rejected, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/jobs/drain", nil)
	req.Header.Set("Authorization", "Bearer wrong-secret")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong secret must be rejected, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/jobs/drain", nil)
	req.Header.Set("Authorization", "correct-horse")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("non-bearer header must be rejected, got %d", resp.StatusCode)
	}
}

func TestJobProtectedAcceptsCorrectSecret(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Env = "production"
	cfg.Sync.JobSecret = "correct-horse"
	app := testApp(cfg)

	req := httptest.NewRequest(http.MethodPost, "/jobs/drain", nil)
	req.Header.Set("Authorization", "Bearer correct-horse")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("correct secret must pass, got %d", resp.StatusCode)
	}
}

func TestJobProtectedBypassedWithoutSecretInDev(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Env = "development"
	app := testApp(cfg)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/jobs/drain", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("dev without a secret must bypass auth, got %d", resp.StatusCode)
	}
}
