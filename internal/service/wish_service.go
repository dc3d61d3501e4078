package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
	"github.com/wishvault/wishvault/internal/repository"
)

const maxWishTitleLength = 200

// WishService handles wish-list entries. Every operation is scoped to the
// owning account; there is no cross-account access.
type WishService struct {
	wishes WishStore
	log    *logger.Logger
}

// NewWishService creates a new WishService
func NewWishService(wishes WishStore, log *logger.Logger) *WishService {
	return &WishService{
		wishes: wishes,
		log:    log.WithComponent("wish_service"),
	}
}

// WishInput contains the client-editable fields of a wish
type WishInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
	PriceCents  *int64  `json:"priceCents,omitempty"`
	Fulfilled   bool    `json:"fulfilled"`
}

func (in *WishInput) validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > maxWishTitleLength {
		return fmt.Errorf("%w: title too long", ErrInvalidInput)
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	}
	return nil
}

// Create adds a wish to the account's list
func (s *WishService) Create(ctx context.Context, accountID string, in WishInput) (*model.Wish, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	wish := &model.Wish{
		ID:          generateID("wsh"),
		AccountID:   accountID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		URL:         in.URL,
		PriceCents:  in.PriceCents,
		Fulfilled:   in.Fulfilled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.wishes.Create(ctx, wish); err != nil {
		return nil, fmt.Errorf("failed to create wish: %w", err)
	}

	s.log.Debug().Str("account_id", accountID).Str("wish_id", wish.ID).Msg("wish created")
	return wish, nil
}

// Get returns one of the account's wishes
func (s *WishService) Get(ctx context.Context, accountID, wishID string) (*model.Wish, error) {
	wish, err := s.wishes.GetByID(ctx, accountID, wishID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWishNotFound
		}
		return nil, fmt.Errorf("failed to get wish: %w", err)
	}
	return wish, nil
}

// List returns the account's wishes, newest first
func (s *WishService) List(ctx context.Context, accountID string, limit, offset int) ([]*model.Wish, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.wishes.ListByAccount(ctx, accountID, limit, offset)
}

// Update replaces the editable fields of one of the account's wishes
func (s *WishService) Update(ctx context.Context, accountID, wishID string, in WishInput) (*model.Wish, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	wish, err := s.Get(ctx, accountID, wishID)
	if err != nil {
		return nil, err
	}

	wish.Title = strings.TrimSpace(in.Title)
	wish.Description = in.Description
	wish.URL = in.URL
	wish.PriceCents = in.PriceCents
	wish.Fulfilled = in.Fulfilled
	wish.UpdatedAt = time.Now()

	if err := s.wishes.Update(ctx, wish); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWishNotFound
		}
		return nil, fmt.Errorf("failed to update wish: %w", err)
	}
	return wish, nil
}

// Delete removes one of the account's wishes
func (s *WishService) Delete(ctx context.Context, accountID, wishID string) error {
	if err := s.wishes.SoftDelete(ctx, accountID, wishID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWishNotFound
		}
		return fmt.Errorf("failed to delete wish: %w", err)
	}
	return nil
}
