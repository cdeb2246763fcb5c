package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "bluecarbon/pkg/domain-errors"
	"bluecarbon/pkg/requestcontext"
)

type RecorderSuite struct {
	suite.Suite
	store    *InMemoryStore
	recorder *Recorder
	ctx      context.Context
}

func (s *RecorderSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.recorder = NewRecorder(s.store)
	s.ctx = context.Background()
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) entry(actor string, action Action, resourceID string) Entry {
	return Entry{
		Actor:        actor,
		Action:       action,
		ResourceType: ResourceVerification,
		ResourceID:   resourceID,
	}
}

func (s *RecorderSuite) TestRecordAssignsIdentityAndClock() {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, fixed)
	ctx = requestcontext.WithRequestID(ctx, "req-42")

	s.Require().NoError(s.recorder.Record(ctx, s.entry("verifier-1", ActionVerificationSubmitted, "rec-1")))

	entries, err := s.recorder.ByResource(s.ctx, ResourceVerification, "rec-1")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.NotEqual(uuid.Nil, entries[0].ID)
	s.Equal(fixed, entries[0].Timestamp)
	s.Equal("req-42", entries[0].RequestID)
}

func (s *RecorderSuite) TestRecordRejectsIncompleteEntries() {
	cases := []struct {
		name  string
		entry Entry
	}{
		{"missing actor", Entry{Action: ActionReviewStarted, ResourceType: ResourceVerification, ResourceID: "r"}},
		{"missing action", Entry{Actor: "a", ResourceType: ResourceVerification, ResourceID: "r"}},
		{"missing resource", Entry{Actor: "a", Action: ActionReviewStarted}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := s.recorder.Record(s.ctx, tc.entry)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *RecorderSuite) TestQueriesFilterAndPreserveOrder() {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, action := range []Action{ActionVerificationSubmitted, ActionReviewStarted, ActionVerificationApproved} {
		e := s.entry("reviewer-9", action, "rec-7")
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		s.Require().NoError(s.recorder.Record(s.ctx, e))
	}
	other := s.entry("someone-else", ActionVerificationRejected, "rec-8")
	other.Timestamp = base.Add(30 * time.Minute)
	s.Require().NoError(s.recorder.Record(s.ctx, other))

	s.Run("by resource preserves append order", func() {
		entries, err := s.recorder.ByResource(s.ctx, ResourceVerification, "rec-7")
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		s.Equal(ActionVerificationSubmitted, entries[0].Action)
		s.Equal(ActionVerificationApproved, entries[2].Action)
	})

	s.Run("by actor", func() {
		entries, err := s.recorder.ByActor(s.ctx, "someone-else")
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(ActionVerificationRejected, entries[0].Action)
	})

	s.Run("time range is half-open", func() {
		entries, err := s.recorder.Between(s.ctx, base, base.Add(time.Hour))
		s.Require().NoError(err)
		s.Require().Len(entries, 2) // submit at +0h and reject at +30m; +1h excluded
	})
}
