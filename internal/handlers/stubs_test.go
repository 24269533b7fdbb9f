package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type stubAccounts struct {
	byID      map[string]*models.Participant
	createErr error
	created   []*models.Participant
}

func newStubAccounts(participants ...*models.Participant) *stubAccounts {
	s := &stubAccounts{byID: map[string]*models.Participant{}}
	for _, p := range participants {
		s.byID[p.ID] = p
	}
	return s
}

func (s *stubAccounts) Create(_ context.Context, participant *models.Participant) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, participant)
	s.byID[participant.ID] = participant
	return nil
}

func (s *stubAccounts) GetByID(_ context.Context, id string) (*models.Participant, error) {
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubAccounts) GetByEmail(_ context.Context, email string) (*models.Participant, error) {
	for _, p := range s.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type stubVerifier struct {
	issued     []string
	issueErr   error
	confirmErr error
	confirmed  []string
}

func (s *stubVerifier) Issue(_ context.Context, participantID string) error {
	s.issued = append(s.issued, participantID)
	return s.issueErr
}

func (s *stubVerifier) Confirm(_ context.Context, participantID string, code string) error {
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmed = append(s.confirmed, participantID+":"+code)
	return nil
}

type stubProfileUpdater struct {
	accounts  *stubAccounts
	lastInput repository.UpdateProfileInput
	err       error
}

func (s *stubProfileUpdater) UpdateProfile(_ context.Context, id string, input repository.UpdateProfileInput) (*models.Participant, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastInput = input
	participant, ok := s.accounts.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	updated := *participant
	if input.DisplayName != nil {
		updated.DisplayName = *input.DisplayName
	}
	if input.AvatarURL != nil {
		updated.AvatarURL = *input.AvatarURL
	}
	if input.About != nil {
		updated.About = *input.About
	}
	if input.Phone != nil {
		updated.Phone = *input.Phone
	}
	s.accounts.byID[id] = &updated
	return &updated, nil
}

type stubStorage struct {
	uploaded []string
	deleted  []string
	signErr  error
}

func (s *stubStorage) Upload(_ context.Context, objectPath string, content io.Reader) (string, error) {
	if _, err := io.ReadAll(content); err != nil {
		return "", err
	}
	url := "https://cdn.test/" + objectPath
	s.uploaded = append(s.uploaded, url)
	return url, nil
}

func (s *stubStorage) Download(_ context.Context, url string) (string, error) {
	return "/tmp/" + url, nil
}

func (s *stubStorage) UploadFile(ctx context.Context, file multipart.File, filename string, folder string) (string, error) {
	return s.Upload(ctx, folder+"/"+filename, file)
}

func (s *stubStorage) DeleteFile(_ context.Context, fileURL string) error {
	s.deleted = append(s.deleted, fileURL)
	return nil
}

func (s *stubStorage) GetSignedURL(_ context.Context, fileURL string) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return fileURL + "?token=signed", nil
}

func (s *stubStorage) ObjectPath(fileURL string) (string, error) {
	objectPath, ok := strings.CutPrefix(fileURL, "https://cdn.test/")
	if !ok {
		return "", errors.New("file url does not belong to configured bucket")
	}
	return objectPath, nil
}

type stubChatService struct {
	messagesResult []models.Message
	messagesTotal  int
	messagesErr    error
	sendErr        error
	lastActorID    string
	lastContactID  string
	lastPage       int
	lastLimit      int
	lastAttachment chatsync.Attachment
	lastPayload    []byte
	authorizeErr   error
	authorized     []string
}

func (s *stubChatService) AuthorizeAttachment(_ context.Context, actorID string, fileURL string) error {
	s.authorized = append(s.authorized, actorID+" "+fileURL)
	return s.authorizeErr
}

func (s *stubChatService) ListMessages(_ context.Context, actorID string, contactID string, page int, limit int) ([]models.Message, int, error) {
	s.lastActorID = actorID
	s.lastContactID = contactID
	s.lastPage = page
	s.lastLimit = limit
	return s.messagesResult, s.messagesTotal, s.messagesErr
}

func (s *stubChatService) SendAttachment(_ context.Context, actorID string, contactID string, attachment chatsync.Attachment) (models.Message, error) {
	s.lastActorID = actorID
	s.lastContactID = contactID
	s.lastAttachment = attachment
	if s.sendErr != nil {
		return models.Message{}, s.sendErr
	}

	body, err := attachment.Open()
	if err != nil {
		return models.Message{}, err
	}
	defer body.Close()
	s.lastPayload, _ = io.ReadAll(body)

	return models.Message{ID: "m1", Kind: attachment.Kind, SenderID: actorID}, nil
}

func withUser(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("role", "participant")
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, fileField, fileName string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}
