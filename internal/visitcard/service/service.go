package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"visitledger/internal/visitcard/metrics"
	"visitledger/internal/visitcard/models"
	"visitledger/internal/visitcard/ports"
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
	"visitledger/pkg/platform/audit"
	"visitledger/pkg/platform/sentinel"
)

// Authorizer decides whether caller may perform an owner-only operation.
type Authorizer interface {
	Authorize(caller id.Address) error
}

// Service is the visit card registry: at most one credential per identity,
// issued by the owner, permanently bound to its holder.
type Service struct {
	access    Authorizer
	store     ports.Store
	tx        ports.StoreTx
	cache     ports.Cache
	publisher audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithCache adds a read-through cache for credential lookups.
func WithCache(cache ports.Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithPublisher sets the sink for issuance events.
func WithPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the issuance timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New builds the registry. store serves reads; tx serves issuance and is
// usually the same value.
func New(access Authorizer, store ports.Store, tx ports.StoreTx, opts ...Option) *Service {
	s := &Service{
		access: access,
		store:  store,
		tx:     tx,
		logger: slog.Default(),
		tracer: otel.Tracer("visitledger/visitcard"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the collection name.
func (s *Service) Name() string {
	return models.CollectionName
}

// Symbol returns the collection symbol.
func (s *Service) Symbol() string {
	return models.CollectionSymbol
}

// Issue records a new credential for req.Recipient and returns its id.
// Fails Unauthorized for anyone but the owner and DuplicateIssuance when the
// recipient already holds a credential; on failure nothing is written.
func (s *Service) Issue(ctx context.Context, caller id.Address, req models.IssueRequest) (models.CredentialID, error) {
	ctx, span := s.tracer.Start(ctx, "visitcard.Issue", trace.WithAttributes(
		attribute.String("caller", caller.Hex()),
		attribute.String("recipient", req.Recipient.Hex()),
	))
	defer span.End()

	if err := s.access.Authorize(caller); err != nil {
		return 0, s.reject(ctx, span, "issue", caller, err)
	}
	if req.Recipient.IsZero() {
		return 0, s.reject(ctx, span, "issue", caller,
			dErrors.New(dErrors.CodeInvalidRecipient, "cannot issue a visit card to the zero address"))
	}

	var issued *models.Credential
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
		_, err := store.FindByOwner(ctx, req.Recipient)
		if err == nil {
			return dErrors.New(dErrors.CodeDuplicateIssuance, "recipient already has a visit card")
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		credentialID, err := store.NextID(ctx)
		if err != nil {
			return err
		}
		credential := &models.Credential{
			ID:       credentialID,
			Owner:    req.Recipient,
			Fields:   req.Fields,
			IssuedAt: s.now().UTC(),
		}
		if err := store.Create(ctx, credential); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeDuplicateIssuance, "recipient already has a visit card")
			}
			return err
		}
		issued = credential
		return nil
	})
	if err != nil {
		if !dErrors.IsDomain(err) {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "issue visit card")
		}
		return 0, s.reject(ctx, span, "issue", caller, err)
	}

	span.SetAttributes(attribute.String("credential_id", issued.ID.String()))
	s.metrics.IncIssued()
	s.logger.InfoContext(ctx, "visit card issued",
		"credential_id", issued.ID.String(),
		"recipient", issued.Owner.Hex(),
	)
	if s.cache != nil {
		if err := s.cache.Put(ctx, issued); err != nil {
			s.metrics.IncCacheErrors()
			s.logger.WarnContext(ctx, "visit card cache write failed", "error", err)
		}
	}
	s.emit(ctx, audit.NewEvent(audit.ActionCredentialIssued, caller, issued.Owner, map[string]string{
		"credential_id": issued.ID.String(),
		"metadata_uri":  issued.Fields.MetadataURI,
	}, issued.IssuedAt))
	return issued.ID, nil
}

// HasCredential reports whether identity holds a visit card.
func (s *Service) HasCredential(ctx context.Context, identity id.Address) (bool, error) {
	_, err := s.CredentialOf(ctx, identity)
	if dErrors.Is(err, dErrors.CodeUnknownCredential) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CredentialOf returns the credential held by identity.
func (s *Service) CredentialOf(ctx context.Context, identity id.Address) (*models.Credential, error) {
	if s.cache != nil {
		if credential, err := s.cache.GetByOwner(ctx, identity); err == nil {
			return credential, nil
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncCacheErrors()
		}
	}
	credential, err := s.store.FindByOwner(ctx, identity)
	if err != nil {
		return nil, translateLookup(err, "identity holds no visit card")
	}
	s.warm(ctx, credential)
	return credential, nil
}

// Credential returns the credential with the given id.
func (s *Service) Credential(ctx context.Context, credentialID models.CredentialID) (*models.Credential, error) {
	if s.cache != nil {
		if credential, err := s.cache.Get(ctx, credentialID); err == nil {
			return credential, nil
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncCacheErrors()
		}
	}
	credential, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		return nil, translateLookup(err, "unknown visit card")
	}
	s.warm(ctx, credential)
	return credential, nil
}

// OwnerOf returns the holder of a credential.
func (s *Service) OwnerOf(ctx context.Context, credentialID models.CredentialID) (id.Address, error) {
	credential, err := s.Credential(ctx, credentialID)
	if err != nil {
		return id.Address{}, err
	}
	return credential.Owner, nil
}

// Metadata returns the fields recorded at issuance.
func (s *Service) Metadata(ctx context.Context, credentialID models.CredentialID) (models.Fields, error) {
	credential, err := s.Credential(ctx, credentialID)
	if err != nil {
		return models.Fields{}, err
	}
	return credential.Fields, nil
}

// TokenURI returns the metadata URI of a credential.
func (s *Service) TokenURI(ctx context.Context, credentialID models.CredentialID) (string, error) {
	fields, err := s.Metadata(ctx, credentialID)
	if err != nil {
		return "", err
	}
	return fields.MetadataURI, nil
}

// BalanceOf is 1 for a holder and 0 for everyone else.
func (s *Service) BalanceOf(ctx context.Context, identity id.Address) (uint64, error) {
	has, err := s.HasCredential(ctx, identity)
	if err != nil || !has {
		return 0, err
	}
	return 1, nil
}

// GetApproved always returns the zero address for an existing credential;
// approvals can never be recorded.
func (s *Service) GetApproved(ctx context.Context, credentialID models.CredentialID) (id.Address, error) {
	if _, err := s.Credential(ctx, credentialID); err != nil {
		return id.Address{}, err
	}
	return id.ZeroAddress, nil
}

// IsApprovedForAll is always false.
func (s *Service) IsApprovedForAll(_ context.Context, _, _ id.Address) bool {
	return false
}

// Transferable reports whether credentials can change hands. It never can.
func (s *Service) Transferable() bool {
	return !models.Soulbound
}

// Approve is refused unconditionally.
func (s *Service) Approve(ctx context.Context, caller, _ id.Address, _ models.CredentialID) error {
	return s.refuseOwnershipChange(ctx, "approve", caller, "soulbound: approvals disabled")
}

// SetApprovalForAll is refused unconditionally.
func (s *Service) SetApprovalForAll(ctx context.Context, caller, _ id.Address, _ bool) error {
	return s.refuseOwnershipChange(ctx, "set_approval_for_all", caller, "soulbound: approvals disabled")
}

// TransferFrom is refused unconditionally, for the holder, the owner and
// everyone else alike.
func (s *Service) TransferFrom(ctx context.Context, caller, _, _ id.Address, _ models.CredentialID) error {
	return s.refuseOwnershipChange(ctx, "transfer_from", caller, "soulbound: transfer disabled")
}

// SafeTransferFrom is refused unconditionally.
func (s *Service) SafeTransferFrom(ctx context.Context, caller, _, _ id.Address, _ models.CredentialID, _ []byte) error {
	return s.refuseOwnershipChange(ctx, "safe_transfer_from", caller, "soulbound: transfer disabled")
}

// refuseOwnershipChange is the single branch every ownership-changing entry
// point takes. It reads and writes no registry state.
func (s *Service) refuseOwnershipChange(ctx context.Context, operation string, caller id.Address, message string) error {
	if models.Soulbound {
		s.metrics.IncRejected(operation, string(dErrors.CodeTransferDisabled))
		s.logger.WarnContext(ctx, "visit card ownership change refused",
			"operation", operation,
			"caller", caller.Hex(),
		)
		return dErrors.New(dErrors.CodeTransferDisabled, message)
	}
	return dErrors.New(dErrors.CodeInternal, "transfers are not implemented")
}

func (s *Service) reject(ctx context.Context, span trace.Span, operation string, caller id.Address, err error) error {
	code := dErrors.CodeOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	s.metrics.IncRejected(operation, string(code))
	if code == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "visit card operation failed",
			"operation", operation,
			"caller", caller.Hex(),
			"error", err,
		)
		return err
	}
	s.logger.WarnContext(ctx, "visit card operation rejected",
		"operation", operation,
		"caller", caller.Hex(),
		"error_code", string(code),
	)
	return err
}

func (s *Service) warm(ctx context.Context, credential *models.Credential) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, credential); err != nil {
		s.metrics.IncCacheErrors()
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "ledger event dropped",
			"action", string(event.Action),
			"error", err,
		)
	}
}

func translateLookup(err error, notFoundMessage string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeUnknownCredential, notFoundMessage)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "load visit card")
}
