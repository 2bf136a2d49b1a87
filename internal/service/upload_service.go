package service

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
	"github.com/noah-isme/coaching-center-api/pkg/storage"
)

const defaultMaxPixels = 25_000_000

// UploadConfig tunes image uploads.
type UploadConfig struct {
	KeyPrefix    string
	MaxFileBytes int64
	MaxDimension int
	MaxPixels    int
}

// UploadedImage describes a stored image.
type UploadedImage struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
}

// UploadService normalises images and writes them to the object store.
type UploadService struct {
	store  storage.ObjectStore
	cfg    UploadConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewUploadService constructs an UploadService.
func NewUploadService(store storage.ObjectStore, cfg UploadConfig, logger *zap.Logger) *UploadService {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 5 * 1024 * 1024
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 1024
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = defaultMaxPixels
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "images"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// MaxFileBytes exposes the configured upload limit.
func (s *UploadService) MaxFileBytes() int64 {
	return s.cfg.MaxFileBytes
}

// UploadImage resizes raw image bytes and stores them under a dated key.
func (s *UploadService) UploadImage(ctx context.Context, raw []byte) (*UploadedImage, error) {
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if int64(len(raw)) > s.cfg.MaxFileBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "image exceeds upload limit")
	}
	img, err := storage.NormalizeImage(raw, s.cfg.MaxDimension, s.cfg.MaxPixels)
	if err != nil {
		if errors.Is(err, storage.ErrImageTooLarge) {
			return nil, appErrors.Wrap(err, appErrors.ErrPayloadTooLarge.Code, appErrors.ErrPayloadTooLarge.Status, "image dimensions exceed upload limit")
		}
		if errors.Is(err, storage.ErrUnsupportedImage) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedMedia.Code, appErrors.ErrUnsupportedMedia.Status, "only jpeg, png and gif images are accepted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not decode image")
	}

	key := path.Join(s.cfg.KeyPrefix, s.now().UTC().Format("20060102"), uuid.NewString()+img.Extension)
	url, err := s.store.Put(ctx, key, img.ContentType, img.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	s.logger.Info("image uploaded", zap.String("key", key), zap.Int("bytes", len(img.Data)), zap.Int("width", img.Width), zap.Int("height", img.Height))
	return &UploadedImage{
		Key:         key,
		URL:         url,
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
		Size:        len(img.Data),
	}, nil
}

// DeleteImage removes a stored image. Keys outside the upload prefix are rejected.
func (s *UploadService) DeleteImage(ctx context.Context, key string) error {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if !strings.HasPrefix(key, s.cfg.KeyPrefix+"/") {
		return appErrors.Clone(appErrors.ErrValidation, "key is outside the upload area")
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete image")
	}
	return nil
}
