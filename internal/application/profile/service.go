package profile

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/portfolio-api/internal/domain"
)

// maxAvatarSize caps avatar uploads at 5 MiB.
const maxAvatarSize = 5 << 20

var allowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type Service interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, req domain.UpdateProfileRequest) (*domain.Account, error)
	UploadAvatar(ctx context.Context, accountID string, r io.Reader, size int64, contentType string) (*domain.Account, error)
}

type accountStore interface {
	LookupByID(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateMetadata(ctx context.Context, accountID string, patch map[string]interface{}) (*domain.Account, error)
}

type avatarStore interface {
	UploadAvatar(ctx context.Context, accountID string, r io.Reader, contentType string) (string, error)
}

type service struct {
	accounts accountStore
	avatars  avatarStore
}

func NewService(accounts accountStore, avatars avatarStore) Service {
	return &service{accounts: accounts, avatars: avatars}
}

func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.LookupByID(ctx, accountID)
}

// Update patches only the fields the request actually carries; nil pointers
// leave the stored value alone.
func (s *service) Update(ctx context.Context, accountID string, req domain.UpdateProfileRequest) (*domain.Account, error) {
	patch := map[string]interface{}{}
	if req.DisplayName != nil {
		patch["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.AvatarURL != nil {
		patch["avatar_url"] = *req.AvatarURL
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("no profile fields to update: %w", domain.ErrBadRequest)
	}
	return s.accounts.UpdateMetadata(ctx, accountID, patch)
}

// UploadAvatar stores the image and records its public URL on the account.
func (s *service) UploadAvatar(ctx context.Context, accountID string, r io.Reader, size int64, contentType string) (*domain.Account, error) {
	if !allowedAvatarTypes[strings.ToLower(contentType)] {
		return nil, fmt.Errorf("unsupported avatar content type %q: %w", contentType, domain.ErrBadRequest)
	}
	if size > maxAvatarSize {
		return nil, fmt.Errorf("avatar exceeds %d bytes: %w", maxAvatarSize, domain.ErrBadRequest)
	}
	url, err := s.avatars.UploadAvatar(ctx, accountID, io.LimitReader(r, maxAvatarSize), contentType)
	if err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}
	return s.accounts.UpdateMetadata(ctx, accountID, map[string]interface{}{"avatar_url": url})
}
