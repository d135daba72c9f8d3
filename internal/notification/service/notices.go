package service

import (
	"context"
	"fmt"

	"famlink/pkg/domain"
	dErrors "famlink/pkg/domain-errors"
)

// Workflow-facing notice constructors. Callers pass only domain values; the
// wording, persistence, and delivery all happen here. Each helper builds its
// title and content strings and funnels through the Notify primitive.

// SendGoalCreatedNotice tells a parent their child requested a new goal.
func (s *Service) SendGoalCreatedNotice(ctx context.Context, parent domain.UserID, childName, goalTitle string) error {
	_, err := s.Notify(ctx, parent,
		domain.NoticeKindGoal,
		"New goal request",
		fmt.Sprintf("%s requested a new goal: %s", childName, goalTitle),
	)
	return err
}

// SendGoalCanceledNotice tells a parent their child asked to cancel a goal.
//
// This path is idempotent per exact content: while a cancel request with the
// same wording is still pending for the same parent, a second notice fails
// with CodeConflict instead of being created. The dedup key is the fully
// formatted content string, so any wording change resets it.
func (s *Service) SendGoalCanceledNotice(ctx context.Context, parent domain.UserID, childName, goalTitle string) error {
	content := fmt.Sprintf("%s asked to cancel the goal: %s", childName, goalTitle)

	dup, err := s.store.ExistsDuplicate(ctx, parent, domain.NoticeKindGoal, content)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicate notice")
	}
	if dup {
		return dErrors.New(dErrors.CodeConflict, "duplicate cancellation notice")
	}

	_, err = s.Notify(ctx, parent, domain.NoticeKindGoal, "Goal cancellation request", content)
	return err
}

// SendGoalAchievedNotice tells a parent their child completed a goal.
func (s *Service) SendGoalAchievedNotice(ctx context.Context, parent domain.UserID, childName, goalTitle string) error {
	_, err := s.Notify(ctx, parent,
		domain.NoticeKindGoal,
		"Goal achieved",
		fmt.Sprintf("%s achieved the goal: %s", childName, goalTitle),
	)
	return err
}

// SendFamilyLinkedNotice tells one side of a completed family link about the
// other. The wording differs per side: the parent hears about their child,
// the child about their parent.
func (s *Service) SendFamilyLinkedNotice(ctx context.Context, owner domain.UserID, counterpartName string, side domain.FamilyRole) error {
	var content string
	switch side {
	case domain.FamilyRoleParent:
		content = fmt.Sprintf("Your child %s has joined your family.", counterpartName)
	case domain.FamilyRoleChild:
		content = fmt.Sprintf("You are now connected to your parent %s.", counterpartName)
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "unknown family role")
	}

	_, err := s.Notify(ctx, owner, domain.NoticeKindSystem, "Family link complete", content)
	return err
}
