package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"visitledger/internal/access"
	"visitledger/internal/visitcard/metrics"
	"visitledger/internal/visitcard/models"
	"visitledger/internal/visitcard/ports"
	"visitledger/internal/visitcard/service"
	"visitledger/internal/visitcard/store"
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
	"visitledger/pkg/platform/audit"
	"visitledger/pkg/platform/audit/mocks"
	"visitledger/pkg/platform/audit/store/memory"
)

var (
	owner   = id.MustParseAddress("0x1000000000000000000000000000000000000001")
	student = id.MustParseAddress("0x2000000000000000000000000000000000000002")
	other   = id.MustParseAddress("0x3000000000000000000000000000000000000003")
)

var aliceCard = models.Fields{
	MetadataURI: "ipfs://card",
	Name:        "Alice",
	ExternalID:  "S123",
	Course:      "Blockchain",
	Period:      "2025",
}

type VisitCardServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	events  *memory.InMemoryStore
	metrics *metrics.Metrics
	svc     *service.Service
	issued  time.Time
}

func TestVisitCardServiceSuite(t *testing.T) {
	suite.Run(t, new(VisitCardServiceSuite))
}

func (s *VisitCardServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemoryStore()
	s.events = memory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.issued = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	ctrl, err := access.New(owner)
	s.Require().NoError(err)
	s.svc = service.New(ctrl, s.store, s.store,
		service.WithPublisher(s.events),
		service.WithMetrics(s.metrics),
		service.WithClock(func() time.Time { return s.issued }),
	)
}

func (s *VisitCardServiceSuite) issueToStudent() models.CredentialID {
	credentialID, err := s.svc.Issue(s.ctx, owner, models.IssueRequest{Recipient: student, Fields: aliceCard})
	s.Require().NoError(err)
	return credentialID
}

func (s *VisitCardServiceSuite) TestIssue() {
	s.Run("first issuance gets id 1 and binds the recipient", func() {
		credentialID := s.issueToStudent()
		s.Equal(models.CredentialID(1), credentialID)

		holder, err := s.svc.OwnerOf(s.ctx, credentialID)
		s.Require().NoError(err)
		s.Equal(student, holder)

		has, err := s.svc.HasCredential(s.ctx, student)
		s.Require().NoError(err)
		s.True(has)

		fields, err := s.svc.Metadata(s.ctx, credentialID)
		s.Require().NoError(err)
		s.Equal(aliceCard, fields)

		uri, err := s.svc.TokenURI(s.ctx, credentialID)
		s.Require().NoError(err)
		s.Equal("ipfs://card", uri)

		credential, err := s.svc.CredentialOf(s.ctx, student)
		s.Require().NoError(err)
		s.Equal(s.issued, credential.IssuedAt)
	})

	s.Run("ids are strictly increasing across recipients", func() {
		next, err := s.svc.Issue(s.ctx, owner, models.IssueRequest{Recipient: other, Fields: aliceCard})
		s.Require().NoError(err)
		s.Equal(models.CredentialID(2), next)
	})

	s.Run("emits one event per issuance", func() {
		events, err := s.events.ListAll(s.ctx)
		s.Require().NoError(err)
		s.Len(events, 2)
		s.Equal(audit.ActionCredentialIssued, events[0].Action)
		s.Equal(student, events[0].Subject)
		s.Equal("1", events[0].Details["credential_id"])
		s.Equal(float64(2), testutil.ToFloat64(s.metrics.CredentialsIssued))
	})
}

func (s *VisitCardServiceSuite) TestIssueRejections() {
	s.Run("second issuance to the same identity fails and changes nothing", func() {
		first := s.issueToStudent()

		_, err := s.svc.Issue(s.ctx, owner, models.IssueRequest{
			Recipient: student,
			Fields:    models.Fields{MetadataURI: "ipfs://card2", Name: "Bob", ExternalID: "S124", Course: "CS", Period: "2026"},
		})
		s.Require().Error(err)
		s.True(errors.Is(err, dErrors.ErrDuplicateIssuance))

		credential, err := s.svc.CredentialOf(s.ctx, student)
		s.Require().NoError(err)
		s.Equal(first, credential.ID)
		s.Equal(aliceCard, credential.Fields)
	})

	s.Run("a failed issuance does not consume an id", func() {
		next, err := s.svc.Issue(s.ctx, owner, models.IssueRequest{Recipient: other, Fields: aliceCard})
		s.Require().NoError(err)
		s.Equal(models.CredentialID(2), next)
	})

	s.Run("non-owner callers are unauthorized", func() {
		for _, caller := range []id.Address{student, other, id.ZeroAddress} {
			_, err := s.svc.Issue(s.ctx, caller, models.IssueRequest{
				Recipient: id.MustParseAddress("0x4000000000000000000000000000000000000004"),
				Fields:    aliceCard,
			})
			s.True(dErrors.Is(err, dErrors.CodeUnauthorized), caller.Hex())
		}
		has, err := s.svc.HasCredential(s.ctx, id.MustParseAddress("0x4000000000000000000000000000000000000004"))
		s.Require().NoError(err)
		s.False(has)
	})

	s.Run("zero recipient is refused", func() {
		_, err := s.svc.Issue(s.ctx, owner, models.IssueRequest{Recipient: id.ZeroAddress, Fields: aliceCard})
		s.True(dErrors.Is(err, dErrors.CodeInvalidRecipient))
	})

	s.Run("rejections are counted by code", func() {
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Rejections.WithLabelValues("issue", string(dErrors.CodeDuplicateIssuance))))
		s.Equal(float64(3), testutil.ToFloat64(s.metrics.Rejections.WithLabelValues("issue", string(dErrors.CodeUnauthorized))))
	})
}

func (s *VisitCardServiceSuite) TestOwnershipChangesAreAlwaysRefused() {
	credentialID := s.issueToStudent()

	for _, caller := range []id.Address{owner, student, other} {
		s.Run("approve by "+caller.Hex(), func() {
			err := s.svc.Approve(s.ctx, caller, other, credentialID)
			s.True(errors.Is(err, dErrors.ErrTransferDisabled))
			s.Contains(err.Error(), "approvals disabled")
		})
		s.Run("set approval for all by "+caller.Hex(), func() {
			err := s.svc.SetApprovalForAll(s.ctx, caller, other, true)
			s.True(errors.Is(err, dErrors.ErrTransferDisabled))
		})
		s.Run("transfer from by "+caller.Hex(), func() {
			err := s.svc.TransferFrom(s.ctx, caller, student, other, credentialID)
			s.True(errors.Is(err, dErrors.ErrTransferDisabled))
			s.Contains(err.Error(), "transfer disabled")
		})
		s.Run("safe transfer from by "+caller.Hex(), func() {
			err := s.svc.SafeTransferFrom(s.ctx, caller, student, other, credentialID, nil)
			s.True(errors.Is(err, dErrors.ErrTransferDisabled))
		})
	}

	s.Run("ownership and approvals are unchanged", func() {
		holder, err := s.svc.OwnerOf(s.ctx, credentialID)
		s.Require().NoError(err)
		s.Equal(student, holder)

		approved, err := s.svc.GetApproved(s.ctx, credentialID)
		s.Require().NoError(err)
		s.True(approved.IsZero())
		s.False(s.svc.IsApprovedForAll(s.ctx, student, other))
		s.False(s.svc.Transferable())

		balance, err := s.svc.BalanceOf(s.ctx, other)
		s.Require().NoError(err)
		s.Zero(balance)
	})

	s.Run("refusals apply to ids that do not exist", func() {
		err := s.svc.TransferFrom(s.ctx, owner, owner, other, models.CredentialID(999))
		s.True(dErrors.Is(err, dErrors.CodeTransferDisabled))
	})
}

func (s *VisitCardServiceSuite) TestReads() {
	s.Run("unknown ids report UnknownCredential", func() {
		_, err := s.svc.OwnerOf(s.ctx, models.CredentialID(42))
		s.True(errors.Is(err, dErrors.ErrUnknownCredential))

		_, err = s.svc.Metadata(s.ctx, models.CredentialID(42))
		s.True(errors.Is(err, dErrors.ErrUnknownCredential))

		_, err = s.svc.GetApproved(s.ctx, models.CredentialID(42))
		s.True(errors.Is(err, dErrors.ErrUnknownCredential))
	})

	s.Run("identities without a card report false and zero balance", func() {
		has, err := s.svc.HasCredential(s.ctx, other)
		s.Require().NoError(err)
		s.False(has)

		balance, err := s.svc.BalanceOf(s.ctx, other)
		s.Require().NoError(err)
		s.Zero(balance)
	})

	s.Run("collection identity", func() {
		s.Equal("Soulbound Visit Card", s.svc.Name())
		s.Equal("SBVC", s.svc.Symbol())
	})
}

// failingCache fails every call so reads must fall back to the store.
type failingCache struct{}

func (failingCache) Get(context.Context, models.CredentialID) (*models.Credential, error) {
	return nil, errors.New("cache offline")
}

func (failingCache) GetByOwner(context.Context, id.Address) (*models.Credential, error) {
	return nil, errors.New("cache offline")
}

func (failingCache) Put(context.Context, *models.Credential) error {
	return errors.New("cache offline")
}

var _ ports.Cache = failingCache{}

func (s *VisitCardServiceSuite) TestCacheFailuresFallBackToStore() {
	ctrl, err := access.New(owner)
	s.Require().NoError(err)
	svc := service.New(ctrl, s.store, s.store,
		service.WithCache(failingCache{}),
		service.WithMetrics(s.metrics),
	)

	credentialID, err := svc.Issue(s.ctx, owner, models.IssueRequest{Recipient: student, Fields: aliceCard})
	s.Require().NoError(err)

	holder, err := svc.OwnerOf(s.ctx, credentialID)
	s.Require().NoError(err)
	s.Equal(student, holder)
	s.GreaterOrEqual(testutil.ToFloat64(s.metrics.CacheErrors), float64(2))
}

func TestIssue_PublisherFailureDoesNotUndoIssuance(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().
		Emit(gomock.Any(), gomock.AssignableToTypeOf(audit.Event{})).
		Return(errors.New("broker unavailable"))

	controller, err := access.New(owner)
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewInMemoryStore()
	svc := service.New(controller, st, st, service.WithPublisher(publisher))

	credentialID, err := svc.Issue(context.Background(), owner, models.IssueRequest{Recipient: student, Fields: aliceCard})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	holder, err := svc.OwnerOf(context.Background(), credentialID)
	if err != nil || holder != student {
		t.Fatalf("expected %s to hold %s, got %s (%v)", student, credentialID, holder, err)
	}
}
