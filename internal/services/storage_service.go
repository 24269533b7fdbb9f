package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/gabriel-vasile/mimetype"
)

const maxDownloadBytes = 64 << 20

type StorageService interface {
	chatsync.BlobStore
	UploadFile(ctx context.Context, file multipart.File, filename string, folder string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
	GetSignedURL(ctx context.Context, fileURL string) (string, error)
	ObjectPath(fileURL string) (string, error)
}

type SupabaseStorageService struct {
	baseURL     string
	bucket      string
	serviceKey  string
	cacheDir    string
	maxDownload int64
	httpClient  *http.Client
}

var _ StorageService = (*SupabaseStorageService)(nil)

func NewSupabaseStorageService(baseURL, bucket, serviceKey, cacheDir string) *SupabaseStorageService {
	return &SupabaseStorageService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		bucket:      bucket,
		serviceKey:  serviceKey,
		cacheDir:    cacheDir,
		maxDownload: maxDownloadBytes,
		httpClient:  http.DefaultClient,
	}
}

// Upload stores content under objectPath and returns its public URL.
func (s *SupabaseStorageService) Upload(ctx context.Context, objectPath string, content io.Reader) (string, error) {
	objectPath = strings.Trim(objectPath, "/")
	if objectPath == "" {
		return "", fmt.Errorf("object path is required")
	}
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)

	body, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}

	s.authorize(req)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Content-Type", mimetype.Detect(body).String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "upload file"); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath), nil
}

func (s *SupabaseStorageService) UploadFile(ctx context.Context, file multipart.File, filename string, folder string) (string, error) {
	return s.Upload(ctx, path.Join(strings.Trim(folder, "/"), filename), file)
}

// Download fetches fileURL into the cache directory and returns the local
// path. A file already cached for the same URL is reused.
func (s *SupabaseStorageService) Download(ctx context.Context, fileURL string) (string, error) {
	objectPath, err := s.ObjectPath(fileURL)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(fileURL))
	name := hex.EncodeToString(sum[:16])
	if cached, err := filepath.Glob(filepath.Join(s.cacheDir, name+"*")); err == nil && len(cached) > 0 {
		return cached[0], nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "download file"); err != nil {
		return "", err
	}

	if resp.ContentLength > s.maxDownload {
		return "", fmt.Errorf("%w: %d bytes", ErrDownloadTooLarge, resp.ContentLength)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxDownload+1))
	if err != nil {
		return "", fmt.Errorf("read download: %w", err)
	}
	if int64(len(body)) > s.maxDownload {
		return "", fmt.Errorf("%w: more than %d bytes", ErrDownloadTooLarge, s.maxDownload)
	}

	ext := path.Ext(objectPath)
	if ext == "" {
		ext = mimetype.Detect(body).Extension()
	}

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create download cache: %w", err)
	}
	target := filepath.Join(s.cacheDir, name+ext)
	tmp, err := os.CreateTemp(s.cacheDir, "partial-"+name+"-*")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write download file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close download file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("store download file: %w", err)
	}

	return target, nil
}

func (s *SupabaseStorageService) DeleteFile(ctx context.Context, fileURL string) error {
	objectPath, err := s.ObjectPath(fileURL)
	if err != nil {
		return err
	}

	deleteURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp, "delete file")
}

func (s *SupabaseStorageService) GetSignedURL(ctx context.Context, fileURL string) (string, error) {
	objectPath, err := s.ObjectPath(fileURL)
	if err != nil {
		return "", err
	}

	signURL := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.baseURL, s.bucket, objectPath)
	payload := map[string]int{"expiresIn": 3600}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal signed url payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build signed url request: %w", err)
	}

	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get signed url: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "get signed url"); err != nil {
		return "", err
	}

	var response struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode signed url response: %w", err)
	}
	if response.SignedURL == "" {
		return "", fmt.Errorf("signed url missing from response")
	}

	return fmt.Sprintf("%s/storage/v1%s", s.baseURL, response.SignedURL), nil
}

func (s *SupabaseStorageService) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}

// ObjectPath returns the bucket path a storage URL points at.
func (s *SupabaseStorageService) ObjectPath(fileURL string) (string, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}

	publicPrefix := "/storage/v1/object/public/" + s.bucket + "/"
	objectPrefix := "/storage/v1/object/" + s.bucket + "/"

	switch {
	case strings.HasPrefix(parsed.Path, publicPrefix):
		return strings.TrimPrefix(parsed.Path, publicPrefix), nil
	case strings.HasPrefix(parsed.Path, objectPrefix):
		return strings.TrimPrefix(parsed.Path, objectPrefix), nil
	default:
		return "", fmt.Errorf("file url does not belong to configured bucket")
	}
}

func checkStatus(resp *http.Response, action string) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("%s: status %d: %s", action, resp.StatusCode, strings.TrimSpace(string(body)))
}
