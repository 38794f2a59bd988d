package service

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository/memstore"
)

func newTestService(t *testing.T, repo repository.Repository) *Service {
	t.Helper()
	s, err := NewService(repo, nil, zap.NewNop(), WithBaseDelay(0))
	require.NoError(t, err)

	var mu sync.Mutex
	clock := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func createBook(t *testing.T, s *Service, copies int) model.Book {
	t.Helper()
	book, err := s.CreateBook(context.Background(), model.CreateBookRequest{
		Title:  "Dune",
		Author: "Frank Herbert",
		Copies: copies,
	})
	require.NoError(t, err)
	require.Equal(t, copies, book.TotalCopies)
	require.Equal(t, copies, book.AvailableCopies)
	return book
}

// requireInvariants checks the committed state of the store: the counter equals
// total minus active loans, copy rows mirror the ledger and queues are dense.
func requireInvariants(t *testing.T, store *memstore.Store) {
	t.Helper()
	activeLoans := make(map[int]int)
	loanedCopies := make(map[int]bool)
	for _, l := range store.Loans() {
		if l.Status != model.LoanActive {
			continue
		}
		activeLoans[l.BookID]++
		require.False(t, loanedCopies[l.CopyID], "copy %d has two active loans", l.CopyID)
		loanedCopies[l.CopyID] = true
	}

	copyRows := make(map[int]int)
	for _, c := range store.Copies() {
		copyRows[c.BookID]++
		want := model.CopyAvailable
		if loanedCopies[c.ID] {
			want = model.CopyLoaned
		}
		require.Equal(t, want, c.Status, "copy %d", c.ID)
	}

	for _, b := range store.Books() {
		require.GreaterOrEqual(t, b.AvailableCopies, 0)
		require.LessOrEqual(t, b.AvailableCopies, b.TotalCopies)
		require.Equal(t, b.TotalCopies-activeLoans[b.ID], b.AvailableCopies, "book %d", b.ID)
		require.Equal(t, copyRows[b.ID], b.TotalCopies, "book %d", b.ID)
	}

	queues := make(map[int][]model.Reservation)
	for _, r := range store.Reservations() {
		if r.Status.Active() {
			queues[r.BookID] = append(queues[r.BookID], r)
		}
	}
	for bookID, q := range queues {
		sort.Slice(q, func(i, j int) bool {
			if !q[i].ReservationDate.Equal(q[j].ReservationDate) {
				return q[i].ReservationDate.Before(q[j].ReservationDate)
			}
			return q[i].ID < q[j].ID
		})
		for i, r := range q {
			require.Equal(t, i+1, r.Position, "book %d reservation %d", bookID, r.ID)
		}
	}
}

func activeQueue(store *memstore.Store, bookID int) []model.Reservation {
	var q []model.Reservation
	for _, r := range store.Reservations() {
		if r.BookID == bookID && r.Status.Active() {
			q = append(q, r)
		}
	}
	sort.Slice(q, func(i, j int) bool { return q[i].Position < q[j].Position })
	return q
}

func TestService_singleCopyQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := newTestService(t, store)
	book := createBook(t, s, 1)

	loan1, err := s.Checkout(ctx, model.CheckoutRequest{UserID: 1, BookID: book.ID})
	require.NoError(t, err)
	require.Equal(t, model.LoanActive, loan1.Status)
	require.Equal(t, loan1.LoanDate.Add(model.LoanPeriod), loan1.DueDate)
	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.AvailableCopies)

	_, err = s.Checkout(ctx, model.CheckoutRequest{UserID: 2, BookID: book.ID})
	require.ErrorIs(t, err, errs.ErrNoCopiesAvailable)

	rsv, err := s.Reserve(ctx, model.ReservationRequest{UserID: 2, BookID: book.ID})
	require.NoError(t, err)
	require.Equal(t, 1, rsv.Position)
	require.Equal(t, model.ReservationPending, rsv.Status)

	res, err := s.ReturnCopy(ctx, loan1.ID)
	require.NoError(t, err)
	require.Equal(t, model.LoanReturned, res.Loan.Status)
	require.NotNil(t, res.Loan.ReturnDate)
	require.NotNil(t, res.Notification)
	require.Equal(t, 2, res.Notification.UserID)
	require.Equal(t, rsv.ID, res.Notification.ReservationID)
	require.Equal(t, "Reservation for user 2 is now ready", res.Notification.Message)
	got, err = s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.AvailableCopies)
	q := activeQueue(store, book.ID)
	require.Len(t, q, 1)
	require.Equal(t, model.ReservationReady, q[0].Status)

	loan2, err := s.FulfillReservation(ctx, rsv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, loan2.UserID)
	require.Equal(t, book.ID, loan2.BookID)
	got, err = s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.AvailableCopies)
	require.Empty(t, activeQueue(store, book.ID))
	for _, r := range store.Reservations() {
		if r.ID == rsv.ID {
			require.Equal(t, model.ReservationFulfilled, r.Status)
		}
	}
	requireInvariants(t, store)
}

func TestService_CancelReservation_recalcPositions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := newTestService(t, store)
	book := createBook(t, s, 1)

	var ids []int
	for user := 1; user <= 3; user++ {
		rsv, err := s.Reserve(ctx, model.ReservationRequest{UserID: user, BookID: book.ID})
		require.NoError(t, err)
		require.Equal(t, user, rsv.Position)
		ids = append(ids, rsv.ID)
	}

	cancelled, err := s.CancelReservation(ctx, ids[1])
	require.NoError(t, err)
	require.Equal(t, model.ReservationCancelled, cancelled.Status)

	q := activeQueue(store, book.ID)
	require.Len(t, q, 2)
	require.Equal(t, ids[0], q[0].ID)
	require.Equal(t, 1, q[0].Position)
	require.Equal(t, ids[2], q[1].ID)
	require.Equal(t, 2, q[1].Position)

	_, err = s.CancelReservation(ctx, ids[1])
	require.ErrorIs(t, err, errs.ErrInvalidReservationState)
	_, err = s.CancelReservation(ctx, 999)
	require.ErrorIs(t, err, errs.ErrReservationNotFound)
	requireInvariants(t, store)
}

func TestService_fulfilmentIsFIFO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := newTestService(t, store)
	book := createBook(t, s, 1)

	loan, err := s.Checkout(ctx, model.CheckoutRequest{UserID: 100, BookID: book.ID})
	require.NoError(t, err)

	users := []int{10, 20, 30}
	rsvs := make(map[int]model.Reservation)
	for _, u := range users {
		rsv, err := s.Reserve(ctx, model.ReservationRequest{UserID: u, BookID: book.ID})
		require.NoError(t, err)
		rsvs[u] = rsv
	}

	res, err := s.ReturnCopy(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Notification)
	require.Equal(t, 10, res.Notification.UserID)

	fulfilled, err := s.FulfillReservation(ctx, rsvs[10].ID)
	require.NoError(t, err)
	require.Equal(t, 10, fulfilled.UserID)

	q := activeQueue(store, book.ID)
	require.Len(t, q, 2)
	require.Equal(t, rsvs[20].ID, q[0].ID)
	require.Equal(t, model.ReservationPending, q[0].Status)
	require.Equal(t, rsvs[30].ID, q[1].ID)

	_, err = s.FulfillReservation(ctx, rsvs[20].ID)
	require.ErrorIs(t, err, errs.ErrNoCopiesAvailable)
	_, err = s.FulfillReservation(ctx, rsvs[10].ID)
	require.ErrorIs(t, err, errs.ErrInvalidReservationState)
	requireInvariants(t, store)
}

func TestService_Checkout_concurrentLastCopy(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	s := newTestService(t, store)
	book := createBook(t, s, 1)

	const workers = 16
	var (
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		user := i + 1
		g.Go(func() error {
			_, err := s.Checkout(ctx, model.CheckoutRequest{UserID: user, BookID: book.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, errs.ErrNoCopiesAvailable):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, succeeded)
	require.Equal(t, workers-1, rejected)
	requireInvariants(t, store)
}

func TestService_roundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := newTestService(t, store)
	book := createBook(t, s, 3)

	loan, err := s.Checkout(ctx, model.CheckoutRequest{UserID: 7, BookID: book.ID})
	require.NoError(t, err)
	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.AvailableCopies)

	res, err := s.ReturnCopy(ctx, loan.ID)
	require.NoError(t, err)
	require.Nil(t, res.Notification)
	got, err = s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, book.AvailableCopies, got.AvailableCopies)

	_, err = s.ReturnCopy(ctx, loan.ID)
	require.ErrorIs(t, err, errs.ErrLoanNotFound)
	_, err = s.ReturnCopy(ctx, 999)
	require.ErrorIs(t, err, errs.ErrLoanNotFound)
	requireInvariants(t, store)
}

func TestService_errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := newTestService(t, store)
	book := createBook(t, s, 2)

	_, err := s.Checkout(ctx, model.CheckoutRequest{UserID: 1, BookID: 999})
	require.ErrorIs(t, err, errs.ErrBookNotFound)
	_, err = s.Reserve(ctx, model.ReservationRequest{UserID: 1, BookID: 999})
	require.ErrorIs(t, err, errs.ErrBookNotFound)
	_, err = s.FulfillReservation(ctx, 999)
	require.ErrorIs(t, err, errs.ErrReservationNotFound)

	_, err = s.Reserve(ctx, model.ReservationRequest{UserID: 1, BookID: book.ID})
	require.NoError(t, err)
	_, err = s.Reserve(ctx, model.ReservationRequest{UserID: 1, BookID: book.ID})
	require.ErrorIs(t, err, errs.ErrDuplicateReservation)

	_, err = s.Checkout(ctx, model.CheckoutRequest{UserID: 2, BookID: book.ID})
	require.NoError(t, err)
	_, err = s.RemoveCopies(ctx, book.ID, 2)
	require.ErrorIs(t, err, errs.ErrInsufficientAvailableCopies)
	_, err = s.AddCopies(ctx, book.ID, 0)
	require.ErrorIs(t, err, errs.ErrInvalidCount)
	requireInvariants(t, store)
}

func TestService_copies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := newTestService(t, store)
	book := createBook(t, s, 2)

	loan, err := s.Checkout(ctx, model.CheckoutRequest{UserID: 1, BookID: book.ID})
	require.NoError(t, err)

	got, err := s.AddCopies(ctx, book.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 5, got.TotalCopies)
	require.Equal(t, 4, got.AvailableCopies)

	got, err = s.RemoveCopies(ctx, book.ID, 4)
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalCopies)
	require.Equal(t, 0, got.AvailableCopies)

	for _, c := range store.Copies() {
		require.Equal(t, loan.CopyID, c.ID, "only the loaned copy survives")
	}

	report, err := s.CheckInventory(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, model.InventoryReport{
		BookID:          book.ID,
		TotalCopies:     1,
		AvailableCopies: 0,
		CopyRows:        1,
		FreeCopies:      0,
		Consistent:      true,
	}, report)
	requireInvariants(t, store)
}

type faultyRepo struct {
	repository.Repository
	mu        sync.Mutex
	conflicts int
	calls     int
	wrap      func(tx repository.Tx) repository.Tx
}

func (r *faultyRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	r.mu.Lock()
	r.calls++
	conflict := r.calls <= r.conflicts
	r.mu.Unlock()
	if conflict {
		return errors.Wrap(errs.ErrConcurrencyConflict, "deadlock detected")
	}
	return r.Repository.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if r.wrap != nil {
			tx = r.wrap(tx)
		}
		return fn(ctx, tx)
	})
}

type noFreeCopyTx struct{ repository.Tx }

func (noFreeCopyTx) FindFreeCopy(context.Context, int) (int, bool, error) { return 0, false, nil }

type failingDecrementTx struct {
	repository.Tx
	err error
}

func (tx failingDecrementTx) DecrementAvailable(context.Context, int) (model.Book, error) {
	return model.Book{}, tx.err
}

func TestService_inconsistentInventory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	book := createBook(t, newTestService(t, store), 1)

	rsv, err := newTestService(t, store).Reserve(ctx, model.ReservationRequest{UserID: 5, BookID: book.ID})
	require.NoError(t, err)

	s := newTestService(t, &faultyRepo{
		Repository: store,
		wrap:       func(tx repository.Tx) repository.Tx { return noFreeCopyTx{tx} },
	})
	_, err = s.Checkout(ctx, model.CheckoutRequest{UserID: 1, BookID: book.ID})
	require.ErrorIs(t, err, errs.ErrInventoryInconsistent)
	require.True(t, errs.IsInconsistency(err))

	_, err = s.FulfillReservation(ctx, rsv.ID)
	require.ErrorIs(t, err, errs.ErrNoPhysicalCopyAvailable)
	require.Empty(t, store.Loans())
	requireInvariants(t, store)
}

func TestService_rollback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	book := createBook(t, newTestService(t, store), 1)

	s := newTestService(t, &faultyRepo{
		Repository: store,
		wrap: func(tx repository.Tx) repository.Tx {
			return failingDecrementTx{Tx: tx, err: errors.New("connection reset")}
		},
	})
	_, err := s.Checkout(ctx, model.CheckoutRequest{UserID: 1, BookID: book.ID})
	require.EqualError(t, err, "connection reset")

	require.Empty(t, store.Loans(), "loan insert must be rolled back")
	for _, c := range store.Copies() {
		require.Equal(t, model.CopyAvailable, c.Status)
	}
	requireInvariants(t, store)
}

func TestService_retriesConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	book := createBook(t, newTestService(t, store), 1)

	t.Run("conflict before commit", func(t *testing.T) {
		repo := &faultyRepo{Repository: store, conflicts: 2}
		s := newTestService(t, repo)
		loan, err := s.Checkout(ctx, model.CheckoutRequest{UserID: 1, BookID: book.ID})
		require.NoError(t, err)
		require.Equal(t, 3, repo.calls)

		_, err = s.ReturnCopy(ctx, loan.ID)
		require.NoError(t, err)
	})

	t.Run("conflict mid transaction", func(t *testing.T) {
		attempts := 0
		repo := &faultyRepo{
			Repository: store,
			wrap: func(tx repository.Tx) repository.Tx {
				attempts++
				if attempts == 1 {
					return failingDecrementTx{Tx: tx, err: errs.ErrConcurrencyConflict}
				}
				return tx
			},
		}
		s := newTestService(t, repo)
		_, err := s.Checkout(ctx, model.CheckoutRequest{UserID: 2, BookID: book.ID})
		require.NoError(t, err)
		require.Equal(t, 2, attempts)
		requireInvariants(t, store)
	})

	t.Run("budget exhausted", func(t *testing.T) {
		repo := &faultyRepo{Repository: store, conflicts: 100}
		s, err := NewService(repo, nil, zap.NewNop(), WithMaxAttempts(3), WithBaseDelay(0))
		require.NoError(t, err)
		_, err = s.Reserve(ctx, model.ReservationRequest{UserID: 3, BookID: book.ID})
		require.ErrorIs(t, err, errs.ErrConcurrencyConflict)
		require.Equal(t, 3, repo.calls)
	})
}

// TestService_randomWorkload drives a seeded mix of operations over a few books
// and checks the invariants after every step.
func TestService_randomWorkload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := newTestService(t, store)
	rnd := rand.New(rand.NewSource(42))

	books := []model.Book{createBook(t, s, 1), createBook(t, s, 2), createBook(t, s, 3)}
	pickBook := func() int { return books[rnd.Intn(len(books))].ID }
	pickLoan := func() int {
		loans := store.Loans()
		if len(loans) == 0 {
			return 0
		}
		return loans[rnd.Intn(len(loans))].ID
	}
	pickReservation := func() int {
		rsvs := store.Reservations()
		if len(rsvs) == 0 {
			return 0
		}
		return rsvs[rnd.Intn(len(rsvs))].ID
	}

	for step := 0; step < 400; step++ {
		var err error
		switch rnd.Intn(7) {
		case 0, 1:
			_, err = s.Checkout(ctx, model.CheckoutRequest{UserID: rnd.Intn(6) + 1, BookID: pickBook()})
		case 2:
			_, err = s.ReturnCopy(ctx, pickLoan())
		case 3:
			_, err = s.Reserve(ctx, model.ReservationRequest{UserID: rnd.Intn(6) + 1, BookID: pickBook()})
		case 4:
			_, err = s.CancelReservation(ctx, pickReservation())
		case 5:
			_, err = s.FulfillReservation(ctx, pickReservation())
		case 6:
			if rnd.Intn(2) == 0 {
				_, err = s.AddCopies(ctx, pickBook(), 1)
			} else {
				_, err = s.RemoveCopies(ctx, pickBook(), 1)
			}
		}
		if err != nil {
			require.Truef(t, errs.IsNotFound(err) || errs.IsPrecondition(err), "step %d: %v", step, err)
		}
		requireInvariants(t, store)
	}

	for _, b := range books {
		report, err := s.CheckInventory(ctx, b.ID)
		require.NoError(t, err)
		require.True(t, report.Consistent)
	}
}

func TestService_concurrentWorkload(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	s := newTestService(t, store)
	book := createBook(t, s, 2)

	g, ctx := errgroup.WithContext(context.Background())
	for user := 1; user <= 12; user++ {
		user := user
		g.Go(func() error {
			loan, err := s.Checkout(ctx, model.CheckoutRequest{UserID: user, BookID: book.ID})
			if errors.Is(err, errs.ErrNoCopiesAvailable) {
				_, err = s.Reserve(ctx, model.ReservationRequest{UserID: user, BookID: book.ID})
				return err
			}
			if err != nil {
				return err
			}
			_, err = s.ReturnCopy(ctx, loan.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())
	requireInvariants(t, store)

	got, err := s.GetBook(context.Background(), book.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.AvailableCopies)
}
