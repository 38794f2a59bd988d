// Package memstore is an in-memory repository.Repository. Transactions are
// serialized by a store mutex and run against a cloned state that replaces the
// live one only when fn succeeds, so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
)

type state struct {
	books        map[int]model.Book
	copies       map[int]model.BookCopy
	loans        map[int]model.Loan
	reservations map[int]model.Reservation

	lastBookID        int
	lastCopyID        int
	lastLoanID        int
	lastReservationID int
}

func newState() state {
	return state{
		books:        map[int]model.Book{},
		copies:       map[int]model.BookCopy{},
		loans:        map[int]model.Loan{},
		reservations: map[int]model.Reservation{},
	}
}

func (s state) clone() state {
	c := s
	c.books = make(map[int]model.Book, len(s.books))
	for k, v := range s.books {
		c.books[k] = v
	}
	c.copies = make(map[int]model.BookCopy, len(s.copies))
	for k, v := range s.copies {
		c.copies[k] = v
	}
	c.loans = make(map[int]model.Loan, len(s.loans))
	for k, v := range s.loans {
		c.loans[k] = v
	}
	c.reservations = make(map[int]model.Reservation, len(s.reservations))
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state state
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: &work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Books returns committed books ordered by id.
func (s *Store) Books() []model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Book, 0, len(s.state.books))
	for _, b := range s.state.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Copies returns committed copy rows ordered by id.
func (s *Store) Copies() []model.BookCopy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BookCopy, 0, len(s.state.copies))
	for _, c := range s.state.copies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Loans returns committed loans ordered by id.
func (s *Store) Loans() []model.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Loan, 0, len(s.state.loans))
	for _, l := range s.state.loans {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reservations returns committed reservations ordered by id.
func (s *Store) Reservations() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reservation, 0, len(s.state.reservations))
	for _, r := range s.state.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type tx struct {
	st *state
}

var _ repository.Tx = (*tx)(nil)

func (t *tx) CreateBook(_ context.Context, req model.CreateBookRequest) (model.Book, error) {
	t.st.lastBookID++
	book := model.Book{
		ID:     t.st.lastBookID,
		Title:  req.Title,
		Author: req.Author,
		ISBN:   req.ISBN,
		Genre:  req.Genre,
	}
	t.st.books[book.ID] = book
	return book, nil
}

func (t *tx) GetBook(_ context.Context, bookID int) (model.Book, error) {
	book, ok := t.st.books[bookID]
	if !ok {
		return model.Book{}, errs.ErrBookNotFound
	}
	return book, nil
}

func (t *tx) LockBook(ctx context.Context, bookID int) (model.Book, error) {
	return t.GetBook(ctx, bookID)
}

func (t *tx) DecrementAvailable(ctx context.Context, bookID int) (model.Book, error) {
	book, err := t.GetBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	if book.AvailableCopies <= 0 {
		return model.Book{}, errs.ErrNoCopiesAvailable
	}
	book.AvailableCopies--
	t.st.books[bookID] = book
	return book, nil
}

func (t *tx) IncrementAvailable(ctx context.Context, bookID int) (model.Book, error) {
	book, err := t.GetBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	if book.AvailableCopies >= book.TotalCopies {
		return model.Book{}, errs.ErrAvailableExceedsTotal
	}
	book.AvailableCopies++
	t.st.books[bookID] = book
	return book, nil
}

func (t *tx) activeCopyIDs() map[int]struct{} {
	active := make(map[int]struct{})
	for _, l := range t.st.loans {
		if l.Status == model.LoanActive {
			active[l.CopyID] = struct{}{}
		}
	}
	return active
}

// freeCopies lists copies of bookID without an active loan, ascending by id.
func (t *tx) freeCopies(bookID int) []int {
	active := t.activeCopyIDs()
	var ids []int
	for id, c := range t.st.copies {
		if c.BookID != bookID {
			continue
		}
		if _, loaned := active[id]; loaned {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *tx) FindFreeCopy(_ context.Context, bookID int) (int, bool, error) {
	ids := t.freeCopies(bookID)
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (t *tx) SetCopyStatus(_ context.Context, copyID int, status model.CopyStatus) error {
	c, ok := t.st.copies[copyID]
	if !ok {
		return errors.Errorf("copy %d not found", copyID)
	}
	c.Status = status
	t.st.copies[copyID] = c
	return nil
}

func (t *tx) AddCopies(ctx context.Context, bookID, n int) (model.Book, error) {
	if n <= 0 {
		return model.Book{}, errs.ErrInvalidCount
	}
	book, err := t.GetBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	for i := 0; i < n; i++ {
		t.st.lastCopyID++
		t.st.copies[t.st.lastCopyID] = model.BookCopy{ID: t.st.lastCopyID, BookID: bookID, Status: model.CopyAvailable}
	}
	book.TotalCopies += n
	book.AvailableCopies += n
	t.st.books[bookID] = book
	return book, nil
}

func (t *tx) RemoveAvailableCopies(ctx context.Context, bookID, n int) (model.Book, error) {
	if n <= 0 {
		return model.Book{}, errs.ErrInvalidCount
	}
	book, err := t.GetBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	if book.AvailableCopies < n {
		return model.Book{}, errors.Wrapf(errs.ErrInsufficientAvailableCopies, "requested %d, available %d", n, book.AvailableCopies)
	}
	free := t.freeCopies(bookID)
	if len(free) < n {
		return model.Book{}, errors.Wrapf(errs.ErrInsufficientAvailableCopies, "requested %d, unloaned copy rows %d", n, len(free))
	}
	for _, id := range free[len(free)-n:] {
		delete(t.st.copies, id)
		for loanID, l := range t.st.loans {
			if l.CopyID == id {
				l.CopyID = 0
				t.st.loans[loanID] = l
			}
		}
	}
	book.TotalCopies -= n
	book.AvailableCopies -= n
	t.st.books[bookID] = book
	return book, nil
}

func (t *tx) CountCopies(_ context.Context, bookID int) (int, int, error) {
	total := 0
	for _, c := range t.st.copies {
		if c.BookID == bookID {
			total++
		}
	}
	return total, len(t.freeCopies(bookID)), nil
}

func (t *tx) CreateLoan(_ context.Context, loan model.NewLoan) (model.Loan, error) {
	if _, loaned := t.activeCopyIDs()[loan.CopyID]; loaned {
		return model.Loan{}, errors.Wrapf(errs.ErrCopyAlreadyLoaned, "copy %d", loan.CopyID)
	}
	t.st.lastLoanID++
	created := model.Loan{
		ID:       t.st.lastLoanID,
		CopyID:   loan.CopyID,
		BookID:   loan.BookID,
		UserID:   loan.UserID,
		LoanDate: loan.LoanDate,
		DueDate:  loan.DueDate,
		Status:   model.LoanActive,
	}
	t.st.loans[created.ID] = created
	return created, nil
}

func (t *tx) GetLoan(_ context.Context, loanID int) (model.Loan, error) {
	loan, ok := t.st.loans[loanID]
	if !ok {
		return model.Loan{}, errs.ErrLoanNotFound
	}
	return loan, nil
}

func (t *tx) LockActiveLoan(ctx context.Context, loanID int) (model.Loan, error) {
	loan, err := t.GetLoan(ctx, loanID)
	if err != nil {
		return model.Loan{}, err
	}
	if loan.Status != model.LoanActive {
		return model.Loan{}, errs.ErrLoanNotFound
	}
	return loan, nil
}

func (t *tx) MarkReturned(_ context.Context, loanID int, at time.Time) (model.Loan, error) {
	loan, ok := t.st.loans[loanID]
	if !ok || loan.Status != model.LoanActive {
		return model.Loan{}, errors.Wrapf(errs.ErrLoanNotActive, "loan %d", loanID)
	}
	returned := at
	loan.ReturnDate = &returned
	loan.Status = model.LoanReturned
	t.st.loans[loanID] = loan
	return loan, nil
}

// queue returns the active reservations of bookID ordered by (reservation_date, id).
func (t *tx) queue(bookID int) []model.Reservation {
	var out []model.Reservation
	for _, r := range t.st.reservations {
		if r.BookID == bookID && r.Status.Active() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReservationDate.Equal(out[j].ReservationDate) {
			return out[i].ReservationDate.Before(out[j].ReservationDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tx) Enqueue(ctx context.Context, bookID, userID int, at time.Time) (model.Reservation, error) {
	if dup, _ := t.HasActiveReservation(ctx, bookID, userID); dup {
		return model.Reservation{}, errs.ErrDuplicateReservation
	}
	maxPos := 0
	for _, r := range t.queue(bookID) {
		if r.Position > maxPos {
			maxPos = r.Position
		}
	}
	t.st.lastReservationID++
	rsv := model.Reservation{
		ID:              t.st.lastReservationID,
		UserID:          userID,
		BookID:          bookID,
		ReservationDate: at,
		Position:        maxPos + 1,
		Status:          model.ReservationPending,
	}
	t.st.reservations[rsv.ID] = rsv
	return rsv, nil
}

func (t *tx) HasActiveReservation(_ context.Context, bookID, userID int) (bool, error) {
	for _, r := range t.queue(bookID) {
		if r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) RecalcPositions(_ context.Context, bookID int) error {
	for i, r := range t.queue(bookID) {
		r.Position = i + 1
		t.st.reservations[r.ID] = r
	}
	return nil
}

func (t *tx) PeekNext(_ context.Context, bookID int) (model.Reservation, bool, error) {
	return t.peek(bookID, func(s model.ReservationStatus) bool { return s.Active() })
}

func (t *tx) PeekNextPending(_ context.Context, bookID int) (model.Reservation, bool, error) {
	return t.peek(bookID, func(s model.ReservationStatus) bool { return s == model.ReservationPending })
}

func (t *tx) peek(bookID int, match func(model.ReservationStatus) bool) (model.Reservation, bool, error) {
	var (
		best  model.Reservation
		found bool
	)
	for _, r := range t.queue(bookID) {
		if !match(r.Status) {
			continue
		}
		if !found || r.Position < best.Position {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (t *tx) GetReservation(_ context.Context, reservationID int) (model.Reservation, error) {
	r, ok := t.st.reservations[reservationID]
	if !ok {
		return model.Reservation{}, errs.ErrReservationNotFound
	}
	return r, nil
}

func (t *tx) LockReservation(ctx context.Context, reservationID int) (model.Reservation, error) {
	return t.GetReservation(ctx, reservationID)
}

func (t *tx) MarkReady(_ context.Context, reservationID int) error {
	return t.transition(reservationID, model.ReservationReady, model.ReservationPending)
}

func (t *tx) MarkFulfilled(_ context.Context, reservationID int) error {
	return t.transition(reservationID, model.ReservationFulfilled, model.ActiveReservationStatuses...)
}

func (t *tx) MarkCancelled(_ context.Context, reservationID int) error {
	return t.transition(reservationID, model.ReservationCancelled, model.ActiveReservationStatuses...)
}

func (t *tx) transition(reservationID int, to model.ReservationStatus, from ...model.ReservationStatus) error {
	r, ok := t.st.reservations[reservationID]
	if !ok {
		return errs.ErrReservationNotFound
	}
	for _, s := range from {
		if r.Status == s {
			r.Status = to
			t.st.reservations[reservationID] = r
			return nil
		}
	}
	return errors.Wrapf(errs.ErrInvalidReservationState, "reservation %d %s -> %s", reservationID, r.Status, to)
}
