package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
)

var bookColumns = []string{"book_id", "title", "author", "isbn", "genre", "total_copies", "available_copies"}

func returningBook() string {
	return "returning " + strings.Join(bookColumns, ", ")
}

// freeCopyCond matches copies of bc that have no active loan.
const freeCopyCond = `not exists (select 1 from loans l where l.copy_id = bc.copy_id and l.status = 'active')`

func (r *txRepository) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	book, err := buildOne[model.Book](ctx, r.tx, qb.Insert(booksTableName).
		Columns("title", "author", "isbn", "genre", "total_copies", "available_copies").
		Values(req.Title, req.Author, req.ISBN, req.Genre, 0, 0).
		Suffix(returningBook()))
	if err != nil {
		return model.Book{}, errors.Wrap(err, "CreateBook")
	}
	return book, nil
}

func (r *txRepository) GetBook(ctx context.Context, bookID int) (model.Book, error) {
	return r.selectBook(ctx, bookID, "")
}

func (r *txRepository) LockBook(ctx context.Context, bookID int) (model.Book, error) {
	return r.selectBook(ctx, bookID, "for update")
}

func (r *txRepository) selectBook(ctx context.Context, bookID int, suffix string) (model.Book, error) {
	q := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"book_id": bookID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	book, err := buildOne[model.Book](ctx, r.tx, q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Book{}, errs.ErrBookNotFound
		}
		return model.Book{}, errors.Wrap(err, "selectBook")
	}
	return book, nil
}

func (r *txRepository) DecrementAvailable(ctx context.Context, bookID int) (model.Book, error) {
	book, err := buildOne[model.Book](ctx, r.tx, qb.Update(booksTableName).
		Set("available_copies", sq.Expr("available_copies - 1")).
		Where(sq.Eq{"book_id": bookID}).
		Where(sq.Gt{"available_copies": 0}).
		Suffix(returningBook()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.explainMiss(ctx, bookID, errs.ErrNoCopiesAvailable)
		}
		return model.Book{}, errors.Wrap(err, "DecrementAvailable")
	}
	return book, nil
}

func (r *txRepository) IncrementAvailable(ctx context.Context, bookID int) (model.Book, error) {
	book, err := buildOne[model.Book](ctx, r.tx, qb.Update(booksTableName).
		Set("available_copies", sq.Expr("available_copies + 1")).
		Where(sq.Eq{"book_id": bookID}).
		Where("available_copies < total_copies").
		Suffix(returningBook()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.explainMiss(ctx, bookID, errs.ErrAvailableExceedsTotal)
		}
		return model.Book{}, errors.Wrap(err, "IncrementAvailable")
	}
	return book, nil
}

// explainMiss tells a missing book apart from a guarded update that matched nothing.
func (r *txRepository) explainMiss(ctx context.Context, bookID int, guardErr error) (model.Book, error) {
	if _, err := r.GetBook(ctx, bookID); err != nil {
		return model.Book{}, err
	}
	return model.Book{}, guardErr
}

func (r *txRepository) FindFreeCopy(ctx context.Context, bookID int) (int, bool, error) {
	query, args, err := qb.Select("bc.copy_id").
		From(bookCopyTableName + " bc").
		Where(sq.Eq{"bc.book_id": bookID}).
		Where(freeCopyCond).
		OrderBy("bc.copy_id").
		Limit(1).
		Suffix("for update of bc").
		ToSql()
	if err != nil {
		return 0, false, err
	}
	var copyID int
	if err := r.tx.QueryRow(ctx, query, args...).Scan(&copyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "FindFreeCopy")
	}
	return copyID, true, nil
}

func (r *txRepository) SetCopyStatus(ctx context.Context, copyID int, status model.CopyStatus) error {
	query, args, err := qb.Update(bookCopyTableName).
		Set("status", string(status)).
		Where(sq.Eq{"copy_id": copyID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "SetCopyStatus")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("copy %d not found", copyID)
	}
	return nil
}

func (r *txRepository) AddCopies(ctx context.Context, bookID, n int) (model.Book, error) {
	if n <= 0 {
		return model.Book{}, errs.ErrInvalidCount
	}
	book, err := buildOne[model.Book](ctx, r.tx, qb.Update(booksTableName).
		Set("total_copies", sq.Expr("total_copies + ?", n)).
		Set("available_copies", sq.Expr("available_copies + ?", n)).
		Where(sq.Eq{"book_id": bookID}).
		Suffix(returningBook()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Book{}, errs.ErrBookNotFound
		}
		return model.Book{}, errors.Wrap(err, "AddCopies: update books")
	}

	q := fmt.Sprintf(`insert into %s (book_id, status)
	select @book_id::int, @status::text from generate_series(1, @n::int)`, bookCopyTableName)
	args := pgx.NamedArgs{
		"book_id": bookID,
		"status":  string(model.CopyAvailable),
		"n":       n,
	}
	if _, err := r.tx.Exec(ctx, q, args); err != nil {
		return model.Book{}, errors.Wrap(err, "AddCopies: insert copies")
	}
	r.log.Debug("AddCopies", zap.Int("book_id", bookID), zap.Int("n", n))
	return book, nil
}

func (r *txRepository) RemoveAvailableCopies(ctx context.Context, bookID, n int) (model.Book, error) {
	if n <= 0 {
		return model.Book{}, errs.ErrInvalidCount
	}
	book, err := r.GetBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	if book.AvailableCopies < n {
		return model.Book{}, errors.Wrapf(errs.ErrInsufficientAvailableCopies, "requested %d, available %d", n, book.AvailableCopies)
	}

	q := fmt.Sprintf(`delete from %s where copy_id in (
		select bc.copy_id from %s bc
		where bc.book_id = @book_id and %s
		order by bc.copy_id desc
		limit @n::int
		for update of bc)`, bookCopyTableName, bookCopyTableName, freeCopyCond)
	tag, err := r.tx.Exec(ctx, q, pgx.NamedArgs{"book_id": bookID, "n": n})
	if err != nil {
		return model.Book{}, errors.Wrap(err, "RemoveAvailableCopies: delete copies")
	}
	if removed := int(tag.RowsAffected()); removed < n {
		return model.Book{}, errors.Wrapf(errs.ErrInsufficientAvailableCopies, "requested %d, unloaned copy rows %d", n, removed)
	}

	book, err = buildOne[model.Book](ctx, r.tx, qb.Update(booksTableName).
		Set("total_copies", sq.Expr("total_copies - ?", n)).
		Set("available_copies", sq.Expr("available_copies - ?", n)).
		Where(sq.Eq{"book_id": bookID}).
		Suffix(returningBook()))
	if err != nil {
		return model.Book{}, errors.Wrap(err, "RemoveAvailableCopies: update books")
	}
	return book, nil
}

func (r *txRepository) CountCopies(ctx context.Context, bookID int) (int, int, error) {
	query, args, err := qb.Select("count(*)", fmt.Sprintf("count(*) filter (where %s)", freeCopyCond)).
		From(bookCopyTableName + " bc").
		Where(sq.Eq{"bc.book_id": bookID}).
		ToSql()
	if err != nil {
		return 0, 0, err
	}
	var total, free int
	if err := r.tx.QueryRow(ctx, query, args...).Scan(&total, &free); err != nil {
		return 0, 0, errors.Wrap(err, "CountCopies")
	}
	return total, free, nil
}
