package biblioteca

import (
	"context"
	"errors"
	"strings"
	"time"
)

// defaultLoanHorizon bounds how far in the future a due date may lie.
const defaultLoanHorizon = 60 * 24 * time.Hour

// Operation names used in logs, metrics labels, and span names.
const (
	createLoanOp = "create_loan"
	returnBookOp = "return_book"
)

// Metric names emitted by the Coordinator.
const (
	CoordinatorDurationMetric = "biblioteca_coordinator_duration_seconds"
	CoordinatorErrorsMetric   = "biblioteca_coordinator_errors_total"
)

// Log messages for Coordinator outcomes.
const (
	logMsgLoanCreated      = "loan created"
	logMsgBookReturned     = "book returned"
	logMsgRepeatReturn     = "loan already returned, repeat return treated as success"
	logMsgOperationFailed  = "coordinator operation failed"
	logAttrOperation       = "operation"
	logAttrBookID          = "book_id"
	logAttrLoanID          = "loan_id"
	logAttrAvailableBefore = "available_before"
	logAttrAvailableAfter  = "available_after"
)

// CreateLoan is the input of Coordinator.CreateLoan.
type CreateLoan struct {
	Admin    Identity
	Borrower Borrower
	BookID   BookID
	DueAt    time.Time
}

// Coordinator executes the two inventory-mutating operations, loan creation
// and return, each as one serializable transaction over the book counters and
// the loan record so the two never disagree. Serialization conflicts are
// retried with exponential backoff before an error matching ErrConflict
// surfaces to the caller.
type Coordinator struct {
	store            TransactionalStore
	horizon          time.Duration
	retryOptions     []RetryOption
	logger           Logger
	contextualLogger ContextualLogger
	metrics          MetricsCollector
	tracing          TracingCollector
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator) error

// ErrInvalidLoanHorizon is returned when WithLoanHorizon receives a non-positive duration.
var ErrInvalidLoanHorizon = errors.New("loan horizon must be positive")

// WithLoanHorizon overrides the maximum allowed distance of a due date from
// the time of loan creation. Default: 60 days.
func WithLoanHorizon(horizon time.Duration) CoordinatorOption {
	return func(c *Coordinator) error {
		if horizon <= 0 {
			return ErrInvalidLoanHorizon
		}

		c.horizon = horizon

		return nil
	}
}

// WithRetryOptions sets a custom retry configuration for conflict retries.
func WithRetryOptions(opts ...RetryOption) CoordinatorOption {
	return func(c *Coordinator) error {
		c.retryOptions = opts

		return nil
	}
}

// WithCoordinatorLogger attaches a logger for operation outcomes.
func WithCoordinatorLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) error {
		c.logger = logger

		return nil
	}
}

// WithCoordinatorContextualLogger attaches a context-aware logger, preferred
// over the plain logger when both are set.
func WithCoordinatorContextualLogger(logger ContextualLogger) CoordinatorOption {
	return func(c *Coordinator) error {
		c.contextualLogger = logger

		return nil
	}
}

// WithCoordinatorMetrics attaches a metrics collector for operation durations
// and error counts. The collector is also wired into conflict-retry metrics.
func WithCoordinatorMetrics(collector MetricsCollector) CoordinatorOption {
	return func(c *Coordinator) error {
		c.metrics = collector

		return nil
	}
}

// WithCoordinatorTracing attaches a tracing collector that wraps each
// operation in a span.
func WithCoordinatorTracing(collector TracingCollector) CoordinatorOption {
	return func(c *Coordinator) error {
		c.tracing = collector

		return nil
	}
}

// NewCoordinator creates a Coordinator over the given transactional store.
func NewCoordinator(store TransactionalStore, opts ...CoordinatorOption) (*Coordinator, error) {
	coordinator := &Coordinator{
		store:   store,
		horizon: defaultLoanHorizon,
	}

	for _, opt := range opts {
		if err := opt(coordinator); err != nil {
			return nil, err
		}
	}

	return coordinator, nil
}

// CreateLoan admits and records a new loan.
//
// Input validation happens before any storage access; a failure there is a
// ValidationError and guarantees no state change. Inside one serializable
// transaction the referenced book is read, admission control runs (an error
// matching ErrUnavailable when no copy is free or stock was never set), the
// available counter is decremented by exactly one, and the loan record is
// inserted with status active. The engine assigns the loan ID and timestamps.
func (c *Coordinator) CreateLoan(ctx context.Context, cmd CreateLoan) (LoanID, error) {
	start := time.Now()

	if err := validateCreateLoan(cmd, start, c.horizon); err != nil {
		return "", err
	}

	ctx, span := c.startSpan(ctx, createLoanOp, map[string]string{logAttrBookID: cmd.BookID.String()})
	ctx = WithStrongConsistency(ctx)

	var loanID LoanID
	var availableBefore int

	err := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return c.store.RunInTransaction(retryCtx, func(tx InventoryTx) error {
			book, err := tx.GetBook(retryCtx, cmd.BookID)
			if err != nil {
				return err
			}

			available, defined := book.Available()
			availableBefore = available

			if !defined {
				return NewUnavailableError(cmd.BookID, "book has no registered stock")
			}

			if available <= 0 {
				return NewUnavailableError(cmd.BookID, "all copies are on loan")
			}

			if err := tx.UpdateAvailableQuantity(retryCtx, cmd.BookID, available-1); err != nil {
				return err
			}

			loanID, err = tx.CreateLoan(retryCtx, Loan{
				BookID:    cmd.BookID,
				BookTitle: book.Title,
				Admin:     cmd.Admin,
				Borrower:  cmd.Borrower,
				DueAt:     cmd.DueAt,
				Status:    LoanActive,
			})

			return err
		})
	}, c.retryOptionsFor(createLoanOp)...)

	c.observe(ctx, span, createLoanOp, start, err)

	if err != nil {
		c.logError(ctx, logMsgOperationFailed,
			logAttrOperation, createLoanOp, logAttrBookID, cmd.BookID.String(), "error", err.Error())

		return "", err
	}

	c.logInfo(ctx, logMsgLoanCreated,
		logAttrLoanID, loanID.String(),
		logAttrBookID, cmd.BookID.String(),
		logAttrAvailableBefore, availableBefore,
		logAttrAvailableAfter, availableBefore-1)

	return loanID, nil
}

// ReturnBook transitions a loan to returned and hands the copy back to the
// available pool, clamped so the counter can never exceed the total quantity.
// Returning an already-returned loan is an idempotent success: retried client
// requests must not fail, so the repeat is logged and nothing changes.
func (c *Coordinator) ReturnBook(ctx context.Context, id LoanID) error {
	start := time.Now()

	if strings.TrimSpace(id.String()) == "" {
		return NewValidationError("loanId", "must not be empty")
	}

	ctx, span := c.startSpan(ctx, returnBookOp, map[string]string{logAttrLoanID: id.String()})
	ctx = WithStrongConsistency(ctx)

	var alreadyReturned bool
	var bookID BookID

	err := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		alreadyReturned = false

		return c.store.RunInTransaction(retryCtx, func(tx InventoryTx) error {
			loan, err := tx.GetLoan(retryCtx, id)
			if err != nil {
				return err
			}

			bookID = loan.BookID

			if !loan.Status.Known() {
				return NewValidationError("loan.status", "record carries an unknown status")
			}

			if loan.Status == LoanReturned {
				alreadyReturned = true

				return nil
			}

			book, err := tx.GetBook(retryCtx, loan.BookID)
			if err != nil {
				return err
			}

			// Clamp guards the counter invariant against prior inconsistency;
			// it is not expected to trigger in the absence of bugs.
			available, _ := book.Available()
			newAvailable := available + 1

			if book.Stocked() && newAvailable > *book.Quantity {
				newAvailable = *book.Quantity
			}

			if err := tx.UpdateAvailableQuantity(retryCtx, loan.BookID, newAvailable); err != nil {
				return err
			}

			if err := tx.TouchBook(retryCtx, loan.BookID); err != nil {
				return err
			}

			return tx.MarkLoanReturned(retryCtx, id)
		})
	}, c.retryOptionsFor(returnBookOp)...)

	c.observe(ctx, span, returnBookOp, start, err)

	if err != nil {
		c.logError(ctx, logMsgOperationFailed,
			logAttrOperation, returnBookOp, logAttrLoanID, id.String(), "error", err.Error())

		return err
	}

	if alreadyReturned {
		c.logInfo(ctx, logMsgRepeatReturn, logAttrLoanID, id.String())

		return nil
	}

	c.logInfo(ctx, logMsgBookReturned, logAttrLoanID, id.String(), logAttrBookID, bookID.String())

	return nil
}

// retryOptionsFor combines the configured retry options with the metrics
// wiring for the given operation. Caller options come last so they win.
func (c *Coordinator) retryOptionsFor(operation string) []RetryOption {
	options := make([]RetryOption, 0, len(c.retryOptions)+2)

	if c.metrics != nil {
		options = append(options, WithRetryMetrics(c.metrics, operation))
	}

	if c.logger != nil {
		options = append(options, WithRetryLogger(c.logger, operation))
	}

	return append(options, c.retryOptions...)
}

func (c *Coordinator) logInfo(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.InfoContext(ctx, msg, args...)

		return
	}

	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) logError(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, msg, args...)

		return
	}

	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}

func (c *Coordinator) startSpan(ctx context.Context, operation string, attrs map[string]string) (context.Context, SpanContext) {
	if c.tracing == nil {
		return ctx, nil
	}

	return c.tracing.StartSpan(ctx, "biblioteca.coordinator."+operation, attrs)
}

// observe finishes the span and records duration/error metrics for one
// operation. The idempotent repeat-return path counts as success.
func (c *Coordinator) observe(ctx context.Context, span SpanContext, operation string, start time.Time, err error) {
	status := SpanStatusOK
	if err != nil {
		status = SpanStatusError
	}

	if span != nil {
		c.tracing.FinishSpan(span, status, nil)
	}

	if c.metrics == nil {
		return
	}

	labels := map[string]string{logAttrOperation: operation, "status": status}

	if contextual, ok := c.metrics.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, CoordinatorDurationMetric, time.Since(start), labels)
	} else {
		c.metrics.RecordDuration(CoordinatorDurationMetric, time.Since(start), labels)
	}

	if err == nil {
		return
	}

	errorLabels := map[string]string{logAttrOperation: operation, labelErrorType: errorTypeLabel(err)}

	if contextual, ok := c.metrics.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, CoordinatorErrorsMetric, errorLabels)
	} else {
		c.metrics.IncrementCounter(CoordinatorErrorsMetric, errorLabels)
	}
}
