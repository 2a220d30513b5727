package service

import (
	"context"
	"errors"
	"time"

	"github.com/zenara-designs/reviews-gateway/internal/places"
)

// ErrConfiguration means the place id or API key is not set.
var ErrConfiguration = errors.New("places credentials are not configured")

// PlaceFetcher is satisfied by *places.Client.
type PlaceFetcher interface {
	GetPlace(ctx context.Context, creds places.Credentials) (*places.Place, error)
}

type ReviewsService struct {
	fetcher PlaceFetcher
	creds   places.Credentials
	now     func() time.Time
}

func NewReviewsService(fetcher PlaceFetcher, placeID, apiKey string) *ReviewsService {
	return &ReviewsService{
		fetcher: fetcher,
		creds:   places.Credentials{PlaceID: placeID, APIKey: apiKey},
		now:     time.Now,
	}
}

// Configured reports whether both upstream secrets are present.
func (s *ReviewsService) Configured() bool {
	return s.creds.Valid()
}

// Fetch loads the place from upstream and normalizes it. Errors are
// ErrConfiguration, *places.UpstreamError, circuitbreaker.ErrCircuitOpen or
// anything the transport returned.
func (s *ReviewsService) Fetch(ctx context.Context) (places.Payload, error) {
	if !s.Configured() {
		return places.Payload{}, ErrConfiguration
	}

	place, err := s.fetcher.GetPlace(ctx, s.creds)
	if err != nil {
		return places.Payload{}, err
	}

	return places.Normalize(place, s.now()), nil
}
