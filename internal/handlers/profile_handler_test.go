package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func newProfileApp(accounts *stubAccounts, storage services.StorageService) (*fiber.App, *stubProfileUpdater) {
	updater := &stubProfileUpdater{accounts: accounts}
	handler := NewProfileHandler(updater, accounts, storage, zerolog.Nop())

	app := fiber.New()
	app.Use(withUser("a.b@x.com"))
	app.Get("/api/v1/profile", handler.GetProfile)
	app.Patch("/api/v1/profile", handler.UpdateProfile)
	app.Post("/api/v1/profile/avatar", handler.UploadAvatar)
	return app, updater
}

func TestUpdateProfileValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "empty body", body: `{}`, want: http.StatusBadRequest},
		{name: "blank name", body: `{"display_name":"   "}`, want: http.StatusBadRequest},
		{name: "long about", body: `{"about":"` + strings.Repeat("a", 141) + `"}`, want: http.StatusBadRequest},
		{name: "bad phone", body: `{"phone":"call me"}`, want: http.StatusBadRequest},
		{name: "clear phone", body: `{"phone":""}`, want: http.StatusOK},
		{name: "valid", body: `{"display_name":" Alice ","about":"Available","phone":"+92 300 1234567"}`, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := newStubAccounts(&models.Participant{ID: "a.b@x.com", Email: "a.b@x.com", DisplayName: "A"})
			app, _ := newProfileApp(accounts, nil)

			resp, err := app.Test(jsonRequest(http.MethodPatch, "/api/v1/profile", tt.body))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestUpdateProfileTrimsFields(t *testing.T) {
	accounts := newStubAccounts(&models.Participant{ID: "a.b@x.com", Email: "a.b@x.com", DisplayName: "A"})
	app, updater := newProfileApp(accounts, nil)

	resp, err := app.Test(jsonRequest(http.MethodPatch, "/api/v1/profile", `{"display_name":" Alice "}`))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if updater.lastInput.DisplayName == nil || *updater.lastInput.DisplayName != "Alice" {
		t.Fatalf("expected trimmed display name, got %v", updater.lastInput.DisplayName)
	}
	if updater.lastInput.About != nil || updater.lastInput.Phone != nil {
		t.Fatalf("expected untouched fields to stay nil, got %+v", updater.lastInput)
	}

	var body struct {
		Profile models.Participant `json:"profile"`
	}
	decodeBody(t, resp, &body)
	if body.Profile.DisplayName != "Alice" {
		t.Fatalf("unexpected profile: %+v", body.Profile)
	}
}

func TestUploadAvatarWithoutStorage(t *testing.T) {
	accounts := newStubAccounts(&models.Participant{ID: "a.b@x.com", Email: "a.b@x.com"})
	app, _ := newProfileApp(accounts, nil)

	req := multipartRequest(t, "/api/v1/profile/avatar", nil, "avatar", "me.png", []byte("png"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestUploadAvatarReplacesPreviousAvatar(t *testing.T) {
	accounts := newStubAccounts(&models.Participant{
		ID:        "a.b@x.com",
		Email:     "a.b@x.com",
		AvatarURL: "https://cdn.test/participants/avatars/old.png",
	})
	storage := &stubStorage{}
	app, _ := newProfileApp(accounts, storage)

	req := multipartRequest(t, "/api/v1/profile/avatar", nil, "avatar", "me.PNG", []byte("\x89PNG\r\n"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(storage.uploaded) != 1 || !strings.HasPrefix(storage.uploaded[0], "https://cdn.test/participants/avatars/a_b@x_com-") {
		t.Fatalf("unexpected upload: %v", storage.uploaded)
	}
	if !strings.HasSuffix(storage.uploaded[0], ".png") {
		t.Fatalf("expected lower-cased extension, got %q", storage.uploaded[0])
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != "https://cdn.test/participants/avatars/old.png" {
		t.Fatalf("expected previous avatar deleted, got %v", storage.deleted)
	}
	if accounts.byID["a.b@x.com"].AvatarURL != storage.uploaded[0] {
		t.Fatalf("expected profile to reference the new avatar, got %q", accounts.byID["a.b@x.com"].AvatarURL)
	}
}

func TestUploadAvatarRejectsUnsupportedType(t *testing.T) {
	accounts := newStubAccounts(&models.Participant{ID: "a.b@x.com", Email: "a.b@x.com"})
	storage := &stubStorage{}
	app, _ := newProfileApp(accounts, storage)

	req := multipartRequest(t, "/api/v1/profile/avatar", nil, "avatar", "me.gif", []byte("GIF89a"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(storage.uploaded) != 0 {
		t.Fatalf("expected no upload, got %v", storage.uploaded)
	}
}
