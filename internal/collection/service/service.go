package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"visitledger/internal/collection/metrics"
	"visitledger/internal/collection/models"
	"visitledger/internal/collection/ports"
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
	"visitledger/pkg/platform/audit"
	"visitledger/pkg/platform/sentinel"
)

// Authorizer gates owner-only operations.
type Authorizer interface {
	Authorize(caller id.Address) error
	Owner() id.Address
}

// Service is the collection ledger: a fixed catalog of classes, minted once to
// the owner and then moved between holders in all-or-nothing batches.
type Service struct {
	access    Authorizer
	catalog   models.Catalog
	store     ports.Store
	tx        ports.StoreTx
	publisher audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithPublisher sets the sink for ledger events.
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

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(access Authorizer, catalog models.Catalog, store ports.Store, tx ports.StoreTx, opts ...Option) *Service {
	s := &Service{
		access:  access,
		catalog: catalog,
		store:   store,
		tx:      tx,
		logger:  slog.Default(),
		tracer:  otel.Tracer("visitledger/collection"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the class catalog.
func (s *Service) Catalog() models.Catalog {
	return s.catalog
}

// Initialize mints one unit of every class to the owner. It succeeds once.
func (s *Service) Initialize(ctx context.Context, caller id.Address) error {
	ctx, span := s.tracer.Start(ctx, "collection.Initialize", trace.WithAttributes(
		attribute.String("caller", caller.Hex()),
	))
	defer span.End()

	if err := s.access.Authorize(caller); err != nil {
		return s.reject(ctx, span, "initialize", caller, err)
	}
	owner := s.access.Owner()

	err := s.tx.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
		initialized, err := store.Initialized(ctx)
		if err != nil {
			return err
		}
		if initialized {
			return dErrors.New(dErrors.CodeAlreadyInitialized, "collection already initialized")
		}
		for _, class := range s.catalog.Classes() {
			if err := store.Credit(ctx, owner, class, 1); err != nil {
				return err
			}
		}
		if err := store.MarkInitialized(ctx); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyInitialized, "collection already initialized")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return s.reject(ctx, span, "initialize", caller, internal(err, "initialize collection"))
	}

	s.metrics.IncInitialized()
	s.logger.InfoContext(ctx, "collection initialized",
		"owner", owner.Hex(),
		"classes", s.catalog.Size(),
	)
	s.emit(ctx, audit.NewEvent(audit.ActionCollectionInitialized, caller, owner, map[string]string{
		"classes": strconv.Itoa(s.catalog.Size()),
	}, s.now().UTC()))
	return nil
}

// Distribute moves amounts[i] of classes[i] from the owner to recipient, all
// pairs together or none. data is carried into the event and otherwise unused.
func (s *Service) Distribute(ctx context.Context, caller, recipient id.Address, classes []models.ClassID, amounts []uint64, data []byte) error {
	ctx, span := s.tracer.Start(ctx, "collection.Distribute", trace.WithAttributes(
		attribute.String("caller", caller.Hex()),
		attribute.String("recipient", recipient.Hex()),
		attribute.Int("pairs", len(classes)),
	))
	defer span.End()

	if err := s.access.Authorize(caller); err != nil {
		return s.reject(ctx, span, "distribute", caller, err)
	}
	transfers, err := s.validateBatch(recipient, classes, amounts)
	if err != nil {
		return s.reject(ctx, span, "distribute", caller, err)
	}
	if err := s.move(ctx, caller, recipient, transfers, nil); err != nil {
		return s.reject(ctx, span, "distribute", caller, err)
	}

	s.metrics.IncDistributed()
	s.recordMoved(transfers)
	s.logger.InfoContext(ctx, "collection distributed",
		"recipient", recipient.Hex(),
		"classes", joinClasses(classes),
	)
	s.emit(ctx, audit.NewEvent(audit.ActionCollectionDistributed, caller, recipient,
		batchDetails(caller, classes, amounts, data), s.now().UTC()))
	return nil
}

// Transfer moves amount of class from one holder to another. The caller must
// be the holder or an operator the holder approved.
func (s *Service) Transfer(ctx context.Context, caller, from, to id.Address, class models.ClassID, amount uint64, data []byte) error {
	ctx, span := s.tracer.Start(ctx, "collection.Transfer", trace.WithAttributes(
		attribute.String("caller", caller.Hex()),
		attribute.String("from", from.Hex()),
		attribute.String("to", to.Hex()),
		attribute.String("class_id", class.String()),
	))
	defer span.End()

	if err := s.transfer(ctx, caller, from, to, []models.ClassID{class}, []uint64{amount}, data); err != nil {
		return s.reject(ctx, span, "transfer", caller, err)
	}
	return nil
}

// BatchTransfer is Transfer over several classes, applied atomically.
func (s *Service) BatchTransfer(ctx context.Context, caller, from, to id.Address, classes []models.ClassID, amounts []uint64, data []byte) error {
	ctx, span := s.tracer.Start(ctx, "collection.BatchTransfer", trace.WithAttributes(
		attribute.String("caller", caller.Hex()),
		attribute.String("from", from.Hex()),
		attribute.String("to", to.Hex()),
		attribute.Int("pairs", len(classes)),
	))
	defer span.End()

	if err := s.transfer(ctx, caller, from, to, classes, amounts, data); err != nil {
		return s.reject(ctx, span, "batch_transfer", caller, err)
	}
	return nil
}

func (s *Service) transfer(ctx context.Context, caller, from, to id.Address, classes []models.ClassID, amounts []uint64, data []byte) error {
	transfers, err := s.validateBatch(to, classes, amounts)
	if err != nil {
		return err
	}
	if err := s.move(ctx, from, to, transfers, requireApproval(caller, from)); err != nil {
		return err
	}

	s.metrics.IncTransferred()
	s.recordMoved(transfers)
	s.logger.InfoContext(ctx, "collection transferred",
		"from", from.Hex(),
		"to", to.Hex(),
		"classes", joinClasses(classes),
	)
	s.emit(ctx, audit.NewEvent(audit.ActionCollectionTransferred, caller, to,
		batchDetails(from, classes, amounts, data), s.now().UTC()))
	return nil
}

// SetApprovalForAll lets operator move every class on behalf of caller.
func (s *Service) SetApprovalForAll(ctx context.Context, caller, operator id.Address, approved bool) error {
	ctx, span := s.tracer.Start(ctx, "collection.SetApprovalForAll", trace.WithAttributes(
		attribute.String("caller", caller.Hex()),
		attribute.String("operator", operator.Hex()),
		attribute.Bool("approved", approved),
	))
	defer span.End()

	if operator.IsZero() {
		return s.reject(ctx, span, "set_approval_for_all", caller,
			dErrors.New(dErrors.CodeInvalidInput, "operator must not be the zero address"))
	}
	if operator == caller {
		return s.reject(ctx, span, "set_approval_for_all", caller,
			dErrors.New(dErrors.CodeInvalidInput, "cannot set approval status for self"))
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
		return store.SetOperator(ctx, caller, operator, approved)
	})
	if err != nil {
		return s.reject(ctx, span, "set_approval_for_all", caller, internal(err, "set operator approval"))
	}

	s.logger.InfoContext(ctx, "operator approval set",
		"holder", caller.Hex(),
		"operator", operator.Hex(),
		"approved", approved,
	)
	s.emit(ctx, audit.NewEvent(audit.ActionOperatorApprovalSet, caller, operator, map[string]string{
		"approved": strconv.FormatBool(approved),
	}, s.now().UTC()))
	return nil
}

// IsApprovedForAll reports whether operator may move holder's balances.
func (s *Service) IsApprovedForAll(ctx context.Context, holder, operator id.Address) (bool, error) {
	approved, err := s.store.IsOperator(ctx, holder, operator)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "load operator approval")
	}
	return approved, nil
}

// BalanceOf returns holder's amount of class.
func (s *Service) BalanceOf(ctx context.Context, holder id.Address, class models.ClassID) (uint64, error) {
	if !s.catalog.Contains(class) {
		return 0, invalidClass(class)
	}
	amount, err := s.store.Balance(ctx, holder, class)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "load balance")
	}
	return amount, nil
}

// BalanceOfBatch returns the balance of each (holders[i], classes[i]) pair.
func (s *Service) BalanceOfBatch(ctx context.Context, holders []id.Address, classes []models.ClassID) ([]uint64, error) {
	if len(holders) != len(classes) {
		return nil, dErrors.New(dErrors.CodeLengthMismatch, "holders and class ids differ in length")
	}
	for _, class := range classes {
		if !s.catalog.Contains(class) {
			return nil, invalidClass(class)
		}
	}
	amounts, err := s.store.Balances(ctx, holders, classes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load balances")
	}
	return amounts, nil
}

// Holdings lists every class holder owns, zero balances included.
func (s *Service) Holdings(ctx context.Context, holder id.Address) ([]models.Balance, error) {
	classes := s.catalog.Classes()
	holders := make([]id.Address, len(classes))
	for i := range holders {
		holders[i] = holder
	}
	amounts, err := s.BalanceOfBatch(ctx, holders, classes)
	if err != nil {
		return nil, err
	}
	out := make([]models.Balance, len(classes))
	for i, class := range classes {
		out[i] = models.Balance{Holder: holder, Class: class, Amount: amounts[i]}
	}
	return out, nil
}

// IsInitialized reports whether the one-time mint has happened.
func (s *Service) IsInitialized(ctx context.Context) (bool, error) {
	initialized, err := s.store.Initialized(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "load collection state")
	}
	return initialized, nil
}

// TotalSupply is the sum of every holder's balance of class.
func (s *Service) TotalSupply(ctx context.Context, class models.ClassID) (uint64, error) {
	if !s.catalog.Contains(class) {
		return 0, invalidClass(class)
	}
	total, err := s.store.TotalSupply(ctx, class)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "load total supply")
	}
	return total, nil
}

// URI returns the metadata URI of class.
func (s *Service) URI(class models.ClassID) (string, error) {
	if !s.catalog.Contains(class) {
		return "", invalidClass(class)
	}
	return s.catalog.URI(class), nil
}

// validateBatch checks shape, range and recipient, in that order, and returns
// the pairs aggregated per class.
func (s *Service) validateBatch(recipient id.Address, classes []models.ClassID, amounts []uint64) ([]models.Transfer, error) {
	if len(classes) != len(amounts) {
		return nil, dErrors.New(dErrors.CodeLengthMismatch, "class ids and amounts differ in length")
	}
	for _, class := range classes {
		if !s.catalog.Contains(class) {
			return nil, invalidClass(class)
		}
	}
	if recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidRecipient, "cannot transfer to the zero address")
	}
	return models.Aggregate(models.Pair(classes, amounts)), nil
}

// precondition runs inside the move transaction before any balance is read.
type precondition func(ctx context.Context, store ports.Store) error

// requireApproval admits the holder itself or an operator the holder approved.
// It reads through the transaction so a revocation cannot slip in between the
// check and the move.
func requireApproval(caller, from id.Address) precondition {
	return func(ctx context.Context, store ports.Store) error {
		if caller == from {
			return nil
		}
		approved, err := store.IsOperator(ctx, from, caller)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load operator approval")
		}
		if !approved {
			return dErrors.New(dErrors.CodeMissingApproval, "caller is not the holder or an approved operator")
		}
		return nil
	}
}

// move debits from and credits to for every transfer in one transaction.
// check, when set, gates the move inside that transaction. Sufficiency is
// checked for the whole batch before anything is written.
func (s *Service) move(ctx context.Context, from, to id.Address, transfers []models.Transfer, check precondition) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
		if check != nil {
			if err := check(ctx, store); err != nil {
				return err
			}
		}
		for _, t := range transfers {
			balance, err := store.Balance(ctx, from, t.Class)
			if err != nil {
				return err
			}
			if balance < t.Amount {
				return insufficient(t.Class)
			}
		}
		for _, t := range transfers {
			if err := store.Debit(ctx, from, t.Class, t.Amount); err != nil {
				if errors.Is(err, sentinel.ErrInsufficient) {
					return insufficient(t.Class)
				}
				return err
			}
			if err := store.Credit(ctx, to, t.Class, t.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	return internal(err, "move balances")
}

func (s *Service) recordMoved(transfers []models.Transfer) {
	for _, t := range transfers {
		s.metrics.AddUnitsMoved(t.Class.String(), t.Amount)
	}
}

func (s *Service) reject(ctx context.Context, span trace.Span, operation string, caller id.Address, err error) error {
	code := dErrors.CodeOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	s.metrics.IncRejected(operation, string(code))
	if code == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "collection operation failed",
			"operation", operation,
			"caller", caller.Hex(),
			"error", err,
		)
		return err
	}
	s.logger.WarnContext(ctx, "collection operation rejected",
		"operation", operation,
		"caller", caller.Hex(),
		"error_code", string(code),
	)
	return err
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

// internal passes domain errors through and wraps anything else.
func internal(err error, message string) error {
	if err == nil || dErrors.IsDomain(err) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

func invalidClass(class models.ClassID) error {
	return dErrors.New(dErrors.CodeInvalidAssetID, "class "+class.String()+" is not in the catalog")
}

func insufficient(class models.ClassID) error {
	return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient balance for class "+class.String())
}

func joinClasses(classes []models.ClassID) string {
	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

func batchDetails(from id.Address, classes []models.ClassID, amounts []uint64, data []byte) map[string]string {
	amountParts := make([]string, len(amounts))
	for i, a := range amounts {
		amountParts[i] = strconv.FormatUint(a, 10)
	}
	details := map[string]string{
		"from":      from.Hex(),
		"class_ids": joinClasses(classes),
		"amounts":   strings.Join(amountParts, ","),
	}
	if len(data) > 0 {
		details["data_len"] = strconv.Itoa(len(data))
	}
	return details
}
