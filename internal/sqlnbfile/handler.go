// Package sqlnbfile turns notebooks into named .sqlnb files on a storage
// adapter. Every operation reports through a Result instead of returning an
// error so callers can show the full error list to the user.
package sqlnbfile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/sqlnb/internal/codec"
	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
	"github.com/xxxsen/sqlnb/internal/storage"
	"github.com/xxxsen/sqlnb/internal/validator"
)

const defaultTimeout = 10 * time.Second

type Result struct {
	Success  bool     `json:"success"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Checksum string   `json:"checksum,omitempty"`
	Err      error    `json:"-"`
}

type LoadResult struct {
	Result
	Notebook *model.Notebook `json:"notebook,omitempty"`
}

type FileInfo struct {
	Key      string `json:"key"`
	Size     int    `json:"size"`
	Checksum string `json:"checksum"`
}

type Handler struct {
	adapter storage.Adapter
	codec   *codec.Codec
	timeout time.Duration
}

type Option func(*Handler)

func WithCodec(c *codec.Codec) Option {
	return func(h *Handler) {
		if c != nil {
			h.codec = c
		}
	}
}

// WithTimeout bounds every storage call. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

func New(adapter storage.Adapter, opts ...Option) *Handler {
	h := &Handler{adapter: adapter, codec: codec.New(), timeout: defaultTimeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Codec() *codec.Codec {
	return h.codec
}

// Save encodes nb, checks the parsed form of the produced text and only then
// writes it. Nothing is written when the self check fails.
func (h *Handler) Save(ctx context.Context, path string, nb *model.Notebook, results model.Results) Result {
	logger := logutil.GetLogger(ctx).With(zap.String("file", path))
	if nb == nil {
		return failure(fmt.Errorf("notebook is required: %w", appErr.ErrInvalid), nil)
	}
	text, err := codec.ToText(h.codec.Encode(nb, results))
	if err != nil {
		logger.Error("encode notebook failed", zap.Error(err))
		return failure(err, nil)
	}
	check := validator.ValidateText(text)
	if !check.Valid {
		logger.Error("encoded notebook failed validation", zap.Strings("errors", check.Errors))
		return failure(check.Err(), check.Warnings)
	}
	if err := h.call(ctx, "save", path, func(ctx context.Context) error {
		return h.adapter.Save(ctx, path, text)
	}); err != nil {
		logger.Error("save notebook file failed", zap.Error(err))
		return failure(err, check.Warnings)
	}
	logger.Debug("notebook file saved", zap.Int("size", len(text)), zap.Int("cells", len(nb.Cells)))
	return Result{Success: true, Warnings: check.Warnings, Checksum: codec.Checksum(text)}
}

// Load reads path, validates the parsed text and decodes it. Validation
// failures are reported as format errors that still carry the error list.
func (h *Handler) Load(ctx context.Context, path string) LoadResult {
	logger := logutil.GetLogger(ctx).With(zap.String("file", path))
	text, err := h.loadText(ctx, path)
	if err != nil {
		if !appErr.IsNotFound(err) {
			logger.Error("load notebook file failed", zap.Error(err))
		}
		return LoadResult{Result: failure(err, nil)}
	}
	check := validator.ValidateText(text)
	if !check.Valid {
		logger.Warn("notebook file failed validation", zap.Strings("errors", check.Errors))
		return LoadResult{Result: failure(appErr.NewFormatError("invalid .sqlnb file", check.Err()), check.Warnings)}
	}
	doc, err := codec.FromText(text)
	if err != nil {
		return LoadResult{Result: failure(err, check.Warnings)}
	}
	nb, err := h.codec.Decode(doc)
	if err != nil {
		return LoadResult{Result: failure(err, check.Warnings)}
	}
	return LoadResult{
		Result:   Result{Success: true, Warnings: check.Warnings, Checksum: codec.Checksum(text)},
		Notebook: nb,
	}
}

func (h *Handler) Delete(ctx context.Context, path string) Result {
	if err := h.call(ctx, "delete", path, func(ctx context.Context) error {
		return h.adapter.Delete(ctx, path)
	}); err != nil {
		logutil.GetLogger(ctx).Error("delete notebook file failed", zap.String("file", path), zap.Error(err))
		return failure(err, nil)
	}
	return Result{Success: true}
}

// List returns the stored file names in lexical order.
func (h *Handler) List(ctx context.Context) ([]string, error) {
	var keys []string
	if err := h.call(ctx, "list", "", func(ctx context.Context) error {
		var err error
		keys, err = h.adapter.List(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Validate checks raw .sqlnb text, as typed into the YAML editor.
func (h *Handler) Validate(text string) validator.Result {
	return validator.ValidateText(text)
}

func (h *Handler) Stat(ctx context.Context, path string) (*FileInfo, error) {
	text, err := h.loadText(ctx, path)
	if err != nil {
		return nil, err
	}
	return &FileInfo{Key: path, Size: len(text), Checksum: codec.Checksum(text)}, nil
}

func (h *Handler) loadText(ctx context.Context, path string) (string, error) {
	var (
		text  string
		found bool
	)
	if err := h.call(ctx, "load", path, func(ctx context.Context) error {
		var err error
		text, found, err = h.adapter.Load(ctx, path)
		return err
	}); err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("file %q: %w", path, appErr.ErrNotFound)
	}
	return text, nil
}

// call runs fn under the handler timeout. An adapter that ignores its
// context still cannot hold the caller past the deadline.
func (h *Handler) call(ctx context.Context, op, key string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()
	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", appErr.ErrTimeout, err)
		}
		return &appErr.StorageError{Op: op, Key: key, Err: err}
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", appErr.ErrTimeout, h.timeout)
		}
		return &appErr.StorageError{Op: op, Key: key, Err: err}
	}
}

func failure(err error, warnings []string) Result {
	return Result{
		Success:  false,
		Errors:   appErr.Messages(err),
		Warnings: warnings,
		Err:      err,
	}
}
