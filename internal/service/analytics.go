package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zenara-designs/reviews-gateway/internal/models"
	"github.com/zenara-designs/reviews-gateway/internal/repository"
)

// ErrAnalyticsDisabled is returned when no database is configured.
var ErrAnalyticsDisabled = errors.New("request log storage is not configured")

// RequestLogStore is satisfied by *repository.RequestLogRepository.
type RequestLogStore interface {
	FindByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.RequestLog, error)
	FindByStatusCode(ctx context.Context, statusCode int, from, to time.Time, limit, offset int) ([]models.RequestLog, error)
	CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error)
	CountRateLimited(ctx context.Context, from, to time.Time) (int64, error)
	GetAverageResponseTime(ctx context.Context, from, to time.Time) (float64, error)
	GetPercentile(ctx context.Context, from, to time.Time, percentile float64) (int, error)
	CountByStatusCodeRange(ctx context.Context, minStatusCode, maxStatusCode int, from, to time.Time) (int64, error)
	GetTopClients(ctx context.Context, from, to time.Time, limit int) ([]repository.ClientCount, error)
	DeleteOldLogs(ctx context.Context, before time.Time) (int64, error)
}

type AnalyticsService struct {
	store RequestLogStore
	now   func() time.Time
}

// NewAnalyticsService accepts a nil store; every method then returns
// ErrAnalyticsDisabled.
func NewAnalyticsService(store RequestLogStore) *AnalyticsService {
	return &AnalyticsService{store: store, now: time.Now}
}

func (s *AnalyticsService) Enabled() bool {
	return s.store != nil
}

// Holds analytics summary data
type AnalyticsSummary struct {
	From            time.Time                `json:"from"`
	To              time.Time                `json:"to"`
	TotalRequests   int64                    `json:"total_requests"`
	RateLimited     int64                    `json:"rate_limited"`
	AvgResponseTime float64                  `json:"avg_response_time_ms"`
	P50ResponseTime int                      `json:"p50_response_time_ms"`
	P95ResponseTime int                      `json:"p95_response_time_ms"`
	P99ResponseTime int                      `json:"p99_response_time_ms"`
	ErrorRate       float64                  `json:"error_rate"`
	SuccessRate     float64                  `json:"success_rate"`
	ClientErrorRate float64                  `json:"client_error_rate"`
	ServerErrorRate float64                  `json:"server_error_rate"`
	TopClients      []repository.ClientCount `json:"top_clients"`
}

// Retrieves analytics summary for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	if !s.Enabled() {
		return nil, ErrAnalyticsDisabled
	}

	summary := &AnalyticsSummary{From: from, To: to, TopClients: []repository.ClientCount{}}

	totalRequests, err := s.store.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = totalRequests

	if totalRequests == 0 {
		return summary, nil
	}

	if summary.RateLimited, err = s.store.CountRateLimited(ctx, from, to); err != nil {
		return nil, err
	}

	if summary.AvgResponseTime, err = s.store.GetAverageResponseTime(ctx, from, to); err != nil {
		return nil, err
	}

	if summary.P50ResponseTime, err = s.store.GetPercentile(ctx, from, to, 0.50); err != nil {
		return nil, fmt.Errorf("p50 response time: %w", err)
	}
	if summary.P95ResponseTime, err = s.store.GetPercentile(ctx, from, to, 0.95); err != nil {
		return nil, fmt.Errorf("p95 response time: %w", err)
	}
	if summary.P99ResponseTime, err = s.store.GetPercentile(ctx, from, to, 0.99); err != nil {
		return nil, fmt.Errorf("p99 response time: %w", err)
	}

	clientErrors, err := s.store.CountByStatusCodeRange(ctx, 400, 499, from, to)
	if err != nil {
		return nil, err
	}

	serverErrors, err := s.store.CountByStatusCodeRange(ctx, 500, 599, from, to)
	if err != nil {
		return nil, err
	}

	total := float64(totalRequests)
	summary.ErrorRate = float64(clientErrors+serverErrors) / total * 100
	summary.SuccessRate = 100 - summary.ErrorRate
	summary.ClientErrorRate = float64(clientErrors) / total * 100
	summary.ServerErrorRate = float64(serverErrors) / total * 100

	top, err := s.store.GetTopClients(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	if top != nil {
		summary.TopClients = top
	}

	return summary, nil
}

// Retrieves request logs with pagination and an optional status filter
func (s *AnalyticsService) GetLogs(ctx context.Context, from, to time.Time, statusCode *int, limit, offset int) ([]models.RequestLog, error) {
	if !s.Enabled() {
		return nil, ErrAnalyticsDisabled
	}

	var (
		logs []models.RequestLog
		err  error
	)
	if statusCode != nil {
		logs, err = s.store.FindByStatusCode(ctx, *statusCode, from, to, limit, offset)
	} else {
		logs, err = s.store.FindByTimeRange(ctx, from, to, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.RequestLog{}
	}

	return logs, nil
}

// Deletes logs older than specified retention period
func (s *AnalyticsService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if !s.Enabled() {
		return 0, ErrAnalyticsDisabled
	}
	if retentionDays <= 0 {
		return 0, errors.New("retention must be at least one day")
	}

	cutOffDate := s.now().AddDate(0, 0, -retentionDays)
	return s.store.DeleteOldLogs(ctx, cutOffDate)
}
