package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository/memstore"
)

func TestStore_InTx_discardsFailedTx(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		book, err := tx.CreateBook(ctx, model.CreateBookRequest{Title: "Dune", Author: "Frank Herbert"})
		require.NoError(t, err)
		_, err = tx.AddCopies(ctx, book.ID, 2)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, store.Books())
	require.Empty(t, store.Copies())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = store.InTx(cancelled, func(context.Context, repository.Tx) error {
		t.Fatal("must not run")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestStore_queue(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	err := store.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		book, err := tx.CreateBook(ctx, model.CreateBookRequest{Title: "Dune"})
		require.NoError(t, err)

		// same timestamp: ties are broken by id
		a, err := tx.Enqueue(ctx, book.ID, 1, base)
		require.NoError(t, err)
		b, err := tx.Enqueue(ctx, book.ID, 2, base)
		require.NoError(t, err)
		c, err := tx.Enqueue(ctx, book.ID, 3, base.Add(time.Second))
		require.NoError(t, err)
		require.Equal(t, []int{1, 2, 3}, []int{a.Position, b.Position, c.Position})

		_, err = tx.Enqueue(ctx, book.ID, 2, base)
		require.ErrorIs(t, err, errs.ErrDuplicateReservation)

		require.NoError(t, tx.MarkCancelled(ctx, a.ID))
		require.ErrorIs(t, tx.MarkReady(ctx, a.ID), errs.ErrInvalidReservationState)
		require.NoError(t, tx.RecalcPositions(ctx, book.ID))

		next, ok, err := tx.PeekNext(ctx, book.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, b.ID, next.ID)
		require.Equal(t, 1, next.Position)

		require.NoError(t, tx.MarkReady(ctx, b.ID))
		pending, ok, err := tx.PeekNextPending(ctx, book.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, c.ID, pending.ID)
		require.Equal(t, 2, pending.Position)

		again, err := tx.Enqueue(ctx, book.ID, 1, base.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, 3, again.Position)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_copies(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	err := store.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		book, err := tx.CreateBook(ctx, model.CreateBookRequest{Title: "Dune"})
		require.NoError(t, err)
		_, found, err := tx.FindFreeCopy(ctx, book.ID)
		require.NoError(t, err)
		require.False(t, found)

		_, err = tx.AddCopies(ctx, book.ID, 2)
		require.NoError(t, err)
		copyID, found, err := tx.FindFreeCopy(ctx, book.ID)
		require.NoError(t, err)
		require.True(t, found)

		loan, err := tx.CreateLoan(ctx, model.NewLoan{CopyID: copyID, BookID: book.ID, UserID: 1, LoanDate: now, DueDate: now.Add(model.LoanPeriod)})
		require.NoError(t, err)
		_, err = tx.CreateLoan(ctx, model.NewLoan{CopyID: copyID, BookID: book.ID, UserID: 2, LoanDate: now, DueDate: now})
		require.ErrorIs(t, err, errs.ErrCopyAlreadyLoaned)
		require.True(t, loan.IsOverdue(now.Add(model.LoanPeriod+time.Second)))

		rows, free, err := tx.CountCopies(ctx, book.ID)
		require.NoError(t, err)
		require.Equal(t, 2, rows)
		require.Equal(t, 1, free)

		_, err = tx.MarkReturned(ctx, loan.ID, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = tx.MarkReturned(ctx, loan.ID, now.Add(time.Hour))
		require.ErrorIs(t, err, errs.ErrLoanNotActive)

		got, err := tx.RemoveAvailableCopies(ctx, book.ID, 2)
		require.NoError(t, err)
		require.Equal(t, 0, got.TotalCopies)
		returned, err := tx.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		require.Equal(t, 0, returned.CopyID)
		require.False(t, returned.IsOverdue(now.Add(model.LoanPeriod+time.Second)))
		return nil
	})
	require.NoError(t, err)
}
