package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
)

// Service is the circulation coordinator. Every mutating operation runs in one
// transaction that locks the book row before any loan or reservation row.
type Service struct {
	log     *zap.Logger
	repo    repository.Repository
	reports repository.Reports
	now     func() time.Time
	retry   retryConfig
}

func NewService(repo repository.Repository, reports repository.Reports, log *zap.Logger, opts ...RetryOption) (*Service, error) {
	cfg := defaultRetryConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &Service{
		log:     log.Named("service"),
		repo:    repo,
		reports: reports,
		now:     func() time.Time { return time.Now().UTC() },
		retry:   cfg,
	}, nil
}

func (s *Service) execute(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	err := retry(ctx, s.retry, s.log, op, func(ctx context.Context) error {
		return s.repo.InTx(ctx, fn)
	})
	if errs.IsInconsistency(err) {
		s.log.Error("inventory bookkeeping broken", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (s *Service) Checkout(ctx context.Context, req model.CheckoutRequest) (model.Loan, error) {
	var loan model.Loan
	err := s.execute(ctx, "Checkout", func(ctx context.Context, tx repository.Tx) error {
		book, err := tx.LockBook(ctx, req.BookID)
		if err != nil {
			return err
		}
		if book.AvailableCopies <= 0 {
			return errs.ErrNoCopiesAvailable
		}
		loan, err = s.lendCopy(ctx, tx, book, req.UserID, errs.ErrInventoryInconsistent)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

// lendCopy assumes the book row is locked and its counter is positive.
func (s *Service) lendCopy(ctx context.Context, tx repository.Tx, book model.Book, userID int, noCopyErr error) (model.Loan, error) {
	copyID, found, err := tx.FindFreeCopy(ctx, book.ID)
	if err != nil {
		return model.Loan{}, err
	}
	if !found {
		return model.Loan{}, errors.Wrapf(noCopyErr, "book %d available_copies=%d", book.ID, book.AvailableCopies)
	}
	now := s.now()
	loan, err := tx.CreateLoan(ctx, model.NewLoan{
		CopyID:   copyID,
		BookID:   book.ID,
		UserID:   userID,
		LoanDate: now,
		DueDate:  now.Add(model.LoanPeriod),
	})
	if err != nil {
		return model.Loan{}, err
	}
	if err := tx.SetCopyStatus(ctx, copyID, model.CopyLoaned); err != nil {
		return model.Loan{}, err
	}
	if _, err := tx.DecrementAvailable(ctx, book.ID); err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func (s *Service) ReturnCopy(ctx context.Context, loanID int) (model.ReturnResult, error) {
	var res model.ReturnResult
	err := s.execute(ctx, "ReturnCopy", func(ctx context.Context, tx repository.Tx) error {
		res = model.ReturnResult{}
		current, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if current.Status != model.LoanActive {
			return errs.ErrLoanNotFound
		}
		if _, err := tx.LockBook(ctx, current.BookID); err != nil {
			return err
		}
		loan, err := tx.LockActiveLoan(ctx, loanID)
		if err != nil {
			return err
		}

		res.Loan, err = tx.MarkReturned(ctx, loan.ID, s.now())
		if err != nil {
			return err
		}
		if loan.CopyID != 0 {
			if err := tx.SetCopyStatus(ctx, loan.CopyID, model.CopyAvailable); err != nil {
				return err
			}
		}
		if _, err := tx.IncrementAvailable(ctx, loan.BookID); err != nil {
			return err
		}

		next, ok, err := tx.PeekNextPending(ctx, loan.BookID)
		if err != nil || !ok {
			return err
		}
		if err := tx.MarkReady(ctx, next.ID); err != nil {
			return err
		}
		res.Notification = &model.Notification{
			UserID:        next.UserID,
			BookID:        next.BookID,
			ReservationID: next.ID,
			Message:       fmt.Sprintf("Reservation for user %d is now ready", next.UserID),
		}
		return nil
	})
	if err != nil {
		return model.ReturnResult{}, err
	}
	return res, nil
}

// Reserve does not look at availability: a reservation may be placed while copies are on the shelf.
func (s *Service) Reserve(ctx context.Context, req model.ReservationRequest) (model.Reservation, error) {
	var rsv model.Reservation
	err := s.execute(ctx, "Reserve", func(ctx context.Context, tx repository.Tx) error {
		book, err := tx.LockBook(ctx, req.BookID)
		if err != nil {
			return err
		}
		dup, err := tx.HasActiveReservation(ctx, book.ID, req.UserID)
		if err != nil {
			return err
		}
		if dup {
			return errs.ErrDuplicateReservation
		}
		created, err := tx.Enqueue(ctx, book.ID, req.UserID, s.now())
		if err != nil {
			return err
		}
		if err := tx.RecalcPositions(ctx, book.ID); err != nil {
			return err
		}
		rsv, err = tx.GetReservation(ctx, created.ID)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return rsv, nil
}

// lockActiveReservation locks the book of the reservation, then the reservation itself.
func lockActiveReservation(ctx context.Context, tx repository.Tx, reservationID int) (model.Book, model.Reservation, error) {
	current, err := tx.GetReservation(ctx, reservationID)
	if err != nil {
		return model.Book{}, model.Reservation{}, err
	}
	if !current.Status.Active() {
		return model.Book{}, model.Reservation{}, errors.Wrapf(errs.ErrInvalidReservationState, "reservation %d is %s", current.ID, current.Status)
	}
	book, err := tx.LockBook(ctx, current.BookID)
	if err != nil {
		return model.Book{}, model.Reservation{}, err
	}
	rsv, err := tx.LockReservation(ctx, reservationID)
	if err != nil {
		return model.Book{}, model.Reservation{}, err
	}
	if !rsv.Status.Active() {
		return model.Book{}, model.Reservation{}, errors.Wrapf(errs.ErrInvalidReservationState, "reservation %d is %s", rsv.ID, rsv.Status)
	}
	return book, rsv, nil
}

func (s *Service) CancelReservation(ctx context.Context, reservationID int) (model.Reservation, error) {
	var rsv model.Reservation
	err := s.execute(ctx, "CancelReservation", func(ctx context.Context, tx repository.Tx) error {
		book, current, err := lockActiveReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if err := tx.MarkCancelled(ctx, current.ID); err != nil {
			return err
		}
		if err := tx.RecalcPositions(ctx, book.ID); err != nil {
			return err
		}
		rsv, err = tx.GetReservation(ctx, current.ID)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return rsv, nil
}

func (s *Service) FulfillReservation(ctx context.Context, reservationID int) (model.Loan, error) {
	var loan model.Loan
	err := s.execute(ctx, "FulfillReservation", func(ctx context.Context, tx repository.Tx) error {
		book, rsv, err := lockActiveReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if book.AvailableCopies <= 0 {
			return errs.ErrNoCopiesAvailable
		}
		loan, err = s.lendCopy(ctx, tx, book, rsv.UserID, errs.ErrNoPhysicalCopyAvailable)
		if err != nil {
			return err
		}
		if err := tx.MarkFulfilled(ctx, rsv.ID); err != nil {
			return err
		}
		return tx.RecalcPositions(ctx, book.ID)
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	var book model.Book
	err := s.execute(ctx, "CreateBook", func(ctx context.Context, tx repository.Tx) error {
		created, err := tx.CreateBook(ctx, req)
		if err != nil {
			return err
		}
		book = created
		if req.Copies > 0 {
			book, err = tx.AddCopies(ctx, created.ID, req.Copies)
		}
		return err
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

func (s *Service) GetBook(ctx context.Context, bookID int) (model.Book, error) {
	var book model.Book
	err := s.execute(ctx, "GetBook", func(ctx context.Context, tx repository.Tx) (err error) {
		book, err = tx.GetBook(ctx, bookID)
		return err
	})
	return book, err
}

func (s *Service) AddCopies(ctx context.Context, bookID, n int) (model.Book, error) {
	var book model.Book
	err := s.execute(ctx, "AddCopies", func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.LockBook(ctx, bookID); err != nil {
			return err
		}
		var err error
		book, err = tx.AddCopies(ctx, bookID, n)
		return err
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// RemoveCopies deletes n unloaned copies. Loaned copies are never removed.
func (s *Service) RemoveCopies(ctx context.Context, bookID, n int) (model.Book, error) {
	var book model.Book
	err := s.execute(ctx, "RemoveCopies", func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.LockBook(ctx, bookID); err != nil {
			return err
		}
		var err error
		book, err = tx.RemoveAvailableCopies(ctx, bookID, n)
		return err
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// CheckInventory compares the availability counter with the copy rows. The
// counter stays authoritative, a mismatch is only reported.
func (s *Service) CheckInventory(ctx context.Context, bookID int) (model.InventoryReport, error) {
	var report model.InventoryReport
	err := s.execute(ctx, "CheckInventory", func(ctx context.Context, tx repository.Tx) error {
		book, err := tx.LockBook(ctx, bookID)
		if err != nil {
			return err
		}
		rows, free, err := tx.CountCopies(ctx, bookID)
		if err != nil {
			return err
		}
		report = model.InventoryReport{
			BookID:          book.ID,
			TotalCopies:     book.TotalCopies,
			AvailableCopies: book.AvailableCopies,
			CopyRows:        rows,
			FreeCopies:      free,
			Consistent:      rows == book.TotalCopies && free == book.AvailableCopies,
		}
		return nil
	})
	if err != nil {
		return model.InventoryReport{}, err
	}
	if !report.Consistent {
		s.log.Error("inventory mismatch", zap.Any("report", report))
	}
	return report, nil
}

func (s *Service) UserLoans(ctx context.Context, userID int) ([]model.UserLoan, error) {
	return s.reports.UserLoans(ctx, userID, s.now())
}

func (s *Service) UserReservations(ctx context.Context, userID int) ([]model.QueuedReservation, error) {
	return s.reports.UserReservations(ctx, userID)
}

func (s *Service) ActiveReservations(ctx context.Context) ([]model.QueuedReservation, error) {
	return s.reports.ActiveReservations(ctx)
}

func (s *Service) LoanStats(ctx context.Context) (model.LoanStats, error) {
	return s.reports.LoanStats(ctx, s.now())
}

func (s *Service) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	return s.reports.DashboardStats(ctx, s.now())
}

func (s *Service) RecentActivity(ctx context.Context, limit int) ([]model.Activity, error) {
	return s.reports.RecentActivity(ctx, limit)
}

// RecordActivity stores a consumed circulation event in the activity log.
func (s *Service) RecordActivity(ctx context.Context, event kafka.CirculationEvent) error {
	if event.EventUid == "" {
		return errors.New("event without uid")
	}
	details := event.Message
	if details == "" {
		details = describe(event)
	}
	return s.reports.SaveActivity(ctx, model.Activity{
		EventUid:  event.EventUid,
		Action:    string(event.EventType),
		Details:   details,
		Timestamp: event.Timestamp,
	})
}

func describe(e kafka.CirculationEvent) string {
	switch e.EventType {
	case kafka.EventLoanCreated:
		return fmt.Sprintf("user %d borrowed book %d (loan %d)", e.UserID, e.BookID, e.LoanID)
	case kafka.EventLoanReturned:
		return fmt.Sprintf("user %d returned book %d (loan %d)", e.UserID, e.BookID, e.LoanID)
	case kafka.EventReservationCreated:
		return fmt.Sprintf("user %d reserved book %d", e.UserID, e.BookID)
	case kafka.EventReservationCancelled:
		return fmt.Sprintf("user %d cancelled reservation %d", e.UserID, e.ReservationID)
	case kafka.EventReservationFulfilled:
		return fmt.Sprintf("reservation %d fulfilled for user %d (loan %d)", e.ReservationID, e.UserID, e.LoanID)
	default:
		return fmt.Sprintf("%s user %d book %d", e.EventType, e.UserID, e.BookID)
	}
}
