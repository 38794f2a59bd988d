package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
)

const loansOneActivePerCopy = "loans_one_active_per_copy"

// copy_id is nulled when a copy row is removed after its loans were closed.
var loanColumns = []string{"loan_id", "coalesce(copy_id, 0) as copy_id", "book_id", "user_id", "loan_date", "due_date", "return_date", "status"}

func returningLoan() string {
	return "returning " + strings.Join(loanColumns, ", ")
}

func (r *txRepository) CreateLoan(ctx context.Context, loan model.NewLoan) (model.Loan, error) {
	existsQ, existsArgs, err := qb.Select("1").
		From(loansTableName).
		Where(sq.Eq{"copy_id": loan.CopyID, "status": string(model.LoanActive)}).
		Prefix("select exists (").
		Suffix(")").
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loaned bool
	if err := r.tx.QueryRow(ctx, existsQ, existsArgs...).Scan(&loaned); err != nil {
		return model.Loan{}, errors.Wrap(err, "CreateLoan: check active")
	}
	if loaned {
		return model.Loan{}, errors.Wrapf(errs.ErrCopyAlreadyLoaned, "copy %d", loan.CopyID)
	}

	created, err := buildOne[model.Loan](ctx, r.tx, qb.Insert(loansTableName).
		Columns("copy_id", "book_id", "user_id", "loan_date", "due_date", "status").
		Values(loan.CopyID, loan.BookID, loan.UserID, loan.LoanDate, loan.DueDate, string(model.LoanActive)).
		Suffix(returningLoan()))
	if err != nil {
		if isUniqueViolation(err, loansOneActivePerCopy) {
			return model.Loan{}, errors.Wrapf(errs.ErrCopyAlreadyLoaned, "copy %d", loan.CopyID)
		}
		return model.Loan{}, errors.Wrap(err, "CreateLoan: insert")
	}
	return created, nil
}

func (r *txRepository) GetLoan(ctx context.Context, loanID int) (model.Loan, error) {
	loan, err := buildOne[model.Loan](ctx, r.tx, qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"loan_id": loanID}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Loan{}, errs.ErrLoanNotFound
		}
		return model.Loan{}, errors.Wrap(err, "GetLoan")
	}
	return loan, nil
}

func (r *txRepository) LockActiveLoan(ctx context.Context, loanID int) (model.Loan, error) {
	loan, err := buildOne[model.Loan](ctx, r.tx, qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"loan_id": loanID, "status": string(model.LoanActive)}).
		Suffix("for update"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Loan{}, errs.ErrLoanNotFound
		}
		return model.Loan{}, errors.Wrap(err, "LockActiveLoan")
	}
	return loan, nil
}

func (r *txRepository) MarkReturned(ctx context.Context, loanID int, at time.Time) (model.Loan, error) {
	loan, err := buildOne[model.Loan](ctx, r.tx, qb.Update(loansTableName).
		Set("status", string(model.LoanReturned)).
		Set("return_date", at).
		Where(sq.Eq{"loan_id": loanID, "status": string(model.LoanActive)}).
		Suffix(returningLoan()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Loan{}, errors.Wrapf(errs.ErrLoanNotActive, "loan %d", loanID)
		}
		return model.Loan{}, errors.Wrap(err, "MarkReturned")
	}
	return loan, nil
}
