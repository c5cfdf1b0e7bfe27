// Package stats computes the dashboard counters shown to each role.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/schemedesk/schemedesk/internal/domain/approval"
)

type PatientCounter interface {
	Count(ctx context.Context) (int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}

type ApprovalCounter interface {
	CountByLevelAndStatus(ctx context.Context, level string, status approval.Status) (int, error)
}

type DashboardStats struct {
	TotalPatients    int `json:"totalPatients"`
	RegisteredToday  int `json:"registeredToday"`
	PendingApprovals int `json:"pendingApprovals"`
	PatientFollowups int `json:"patientFollowups"`

	// Totals across every tier.
	ApprovedRecommendations int `json:"approvedRecommendations"`
	RejectedRecommendations int `json:"rejectedRecommendations"`
}

type Service struct {
	patients  PatientCounter
	approvals ApprovalCounter
	now       func() time.Time
}

// NewService reports "today" in the server's local time zone.
func NewService(patients PatientCounter, approvals ApprovalCounter) *Service {
	return &Service{patients: patients, approvals: approvals, now: time.Now}
}

var levels = []approval.Level{approval.LevelFacility, approval.LevelHospital, approval.LevelDistrict, approval.LevelState}

// ComputeDashboardStats returns the counters for role. Pending approvals
// are those waiting at the tier named by role, so super always sees zero.
func (s *Service) ComputeDashboardStats(ctx context.Context, role string) (*DashboardStats, error) {
	total, err := s.patients.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}

	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.patients.CountCreatedBetween(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("count today's patients: %w", err)
	}

	pending, err := s.approvals.CountByLevelAndStatus(ctx, role, approval.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("count pending approvals: %w", err)
	}

	st := &DashboardStats{
		TotalPatients:    total,
		RegisteredToday:  today,
		PendingApprovals: pending,
		PatientFollowups: total / 3,
	}
	for _, l := range levels {
		a, err := s.approvals.CountByLevelAndStatus(ctx, string(l), approval.StatusApproved)
		if err != nil {
			return nil, fmt.Errorf("count approved: %w", err)
		}
		r, err := s.approvals.CountByLevelAndStatus(ctx, string(l), approval.StatusRejected)
		if err != nil {
			return nil, fmt.Errorf("count rejected: %w", err)
		}
		st.ApprovedRecommendations += a
		st.RejectedRecommendations += r
	}
	return st, nil
}
