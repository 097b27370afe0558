package syncengine

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/observability/metrics"
	"github.com/fieldkit/salesync/internal/session"
	storedomain "github.com/fieldkit/salesync/internal/store/domain"
	"github.com/fieldkit/salesync/internal/transport"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrSyncInProgress is returned when a run is requested while another is
// still executing. Callers treat it as "try again later", not a failure.
var ErrSyncInProgress = errors.New("sync_in_progress")

// Summary reports what one sync run accomplished.
type Summary struct {
	RunID           string `json:"run_id"`
	Success         bool   `json:"success"`
	SyncedCustomers int    `json:"synced_customers"`
	SyncedBookings  int    `json:"synced_bookings"`
	SyncedReceipts  int    `json:"synced_receipts"`
	Message         string `json:"message"`
}

func (s Summary) SyncedCount() int {
	return s.SyncedCustomers + s.SyncedBookings + s.SyncedReceipts
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Store    storedomain.Service
	Sessions *session.Manager
	Client   *transport.Client
	Metrics  *metrics.Metrics `optional:"true"`
}

// Engine pushes dirty rows to the server and flips their synced flags on
// acknowledgment. Flags only ever change after the server has confirmed
// the whole batch; a failed run leaves every row dirty for the next one.
type Engine struct {
	mu gosync.Mutex

	log      *zap.Logger
	clock    clock.Clock
	store    storedomain.Service
	sessions *session.Manager
	client   *transport.Client
	metrics  *metrics.Metrics
}

func New(p Params) *Engine {
	return &Engine{
		log:      p.Log.Named("sync.engine"),
		clock:    p.Clock,
		store:    p.Store,
		sessions: p.Sessions,
		client:   p.Client,
		metrics:  p.Metrics,
	}
}

// Run executes at most one sync pass. Concurrent callers get
// ErrSyncInProgress instead of queueing.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	if !e.mu.TryLock() {
		return Summary{}, ErrSyncInProgress
	}
	defer e.mu.Unlock()

	runID := ulid.MustNew(ulid.Timestamp(e.clock.Now()), ulid.DefaultEntropy()).String()
	log := e.log.With(zap.String("run_id", runID))

	sessionID, entityID, serverOrigin, err := e.sessions.ActiveSession()
	if err != nil {
		e.metrics.RecordSyncRun("no_session")
		return Summary{RunID: runID}, err
	}

	batch, err := e.store.UnsyncedBatch(ctx)
	if err != nil {
		e.metrics.RecordSyncRun("store_error")
		return Summary{RunID: runID}, fmt.Errorf("collect unsynced rows: %w", err)
	}
	if batch.Empty() {
		log.Debug("nothing to sync")
		e.metrics.RecordSyncRun("noop")
		return Summary{RunID: runID, Success: true, Message: "nothing to sync"}, nil
	}

	req := buildBatchRequest(sessionID, entityID, batch)
	log.Info("submitting batch",
		zap.Int("customers", len(req.Customers)),
		zap.Int("bookings", len(req.OrderBookings)),
		zap.Int("lines", len(req.OrderBookingLines)),
		zap.Int("receipts", len(req.Receipts)),
	)

	outcome := e.client.SubmitBatch(ctx, serverOrigin, req)
	switch outcome.Kind {
	case transport.OutcomeTransportError:
		log.Warn("batch not delivered", zap.String("detail", outcome.Message))
		e.metrics.RecordSyncRun("transport_error")
		return Summary{RunID: runID, Message: outcome.Message},
			fmt.Errorf("%w: %s", transport.ErrUnavailable, outcome.Message)

	case transport.OutcomeSessionInvalid:
		log.Warn("session invalidated by server", zap.String("detail", outcome.Message))
		e.metrics.RecordSyncRun("session_mismatch")
		e.sessions.ForceLogout(ctx, "session_mismatch")
		return Summary{RunID: runID, Message: outcome.Message}, session.ErrSessionMismatch

	case transport.OutcomeRejected:
		log.Warn("batch rejected", zap.String("detail", outcome.Message))
		e.metrics.RecordSyncRun("rejected")
		return Summary{RunID: runID, Message: outcome.Message},
			fmt.Errorf("%w: %s", transport.ErrRejected, outcome.Message)
	}

	// Server state lands before local flags flip, so a crash in between
	// re-sends already-acknowledged rows rather than losing server edits.
	for _, customer := range outcome.ServerCustomers {
		if err := e.store.UpsertServerCustomer(ctx, customer); err != nil {
			e.metrics.RecordSyncRun("store_error")
			return Summary{RunID: runID}, fmt.Errorf("apply server customer %d: %w", customer.EntityID, err)
		}
	}

	if err := e.markSynced(ctx, batch); err != nil {
		e.metrics.RecordSyncRun("store_error")
		return Summary{RunID: runID}, err
	}

	summary := Summary{
		RunID:           runID,
		Success:         true,
		SyncedCustomers: len(batch.Customers),
		SyncedBookings:  len(batch.Bookings),
		SyncedReceipts:  len(batch.Receipts),
		Message:         "ok",
	}
	e.metrics.RecordSyncRun("success")
	e.metrics.RecordRowsSynced("customer", summary.SyncedCustomers)
	e.metrics.RecordRowsSynced("order_booking", summary.SyncedBookings)
	e.metrics.RecordRowsSynced("receipt", summary.SyncedReceipts)

	log.Info("batch acknowledged", zap.Int("rows", summary.SyncedCount()))
	return summary, nil
}

func (e *Engine) markSynced(ctx context.Context, batch storedomain.UnsyncedBatch) error {
	customerIDs := make([]int64, 0, len(batch.Customers))
	for _, customer := range batch.Customers {
		customerIDs = append(customerIDs, customer.EntityID)
	}
	bookingIDs := make([]int64, 0, len(batch.Bookings))
	for _, booking := range batch.Bookings {
		bookingIDs = append(bookingIDs, booking.BookingID)
	}
	receiptIDs := make([]int64, 0, len(batch.Receipts))
	for _, receipt := range batch.Receipts {
		receiptIDs = append(receiptIDs, receipt.ID)
	}

	if err := e.store.MarkCustomersSynced(ctx, customerIDs); err != nil {
		return fmt.Errorf("mark customers synced: %w", err)
	}
	if err := e.store.MarkBookingsSynced(ctx, bookingIDs); err != nil {
		return fmt.Errorf("mark bookings synced: %w", err)
	}
	if err := e.store.MarkReceiptsSynced(ctx, receiptIDs); err != nil {
		return fmt.Errorf("mark receipts synced: %w", err)
	}
	return nil
}

// buildBatchRequest flattens booking lines into their own wire list; the
// server expects bookings and lines as separate collections.
func buildBatchRequest(sessionID, entityID string, batch storedomain.UnsyncedBatch) transport.BatchRequest {
	req := transport.BatchRequest{
		SessionID:   sessionID,
		AppEntityID: entityID,
		Customers:   batch.Customers,
		Receipts:    batch.Receipts,
	}
	for _, booking := range batch.Bookings {
		req.OrderBookingLines = append(req.OrderBookingLines, booking.Lines...)
		booking.Lines = nil
		req.OrderBookings = append(req.OrderBookings, booking)
	}
	return req
}
