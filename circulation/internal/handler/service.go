package handler

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/service"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CirculationService interface {
	Checkout(ctx context.Context, req model.CheckoutRequest) (model.Loan, error)
	ReturnCopy(ctx context.Context, loanID int) (model.ReturnResult, error)
	Reserve(ctx context.Context, req model.ReservationRequest) (model.Reservation, error)
	CancelReservation(ctx context.Context, reservationID int) (model.Reservation, error)
	FulfillReservation(ctx context.Context, reservationID int) (model.Loan, error)

	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	GetBook(ctx context.Context, bookID int) (model.Book, error)
	AddCopies(ctx context.Context, bookID, n int) (model.Book, error)
	RemoveCopies(ctx context.Context, bookID, n int) (model.Book, error)
	CheckInventory(ctx context.Context, bookID int) (model.InventoryReport, error)

	UserLoans(ctx context.Context, userID int) ([]model.UserLoan, error)
	UserReservations(ctx context.Context, userID int) ([]model.QueuedReservation, error)
	ActiveReservations(ctx context.Context) ([]model.QueuedReservation, error)
	LoanStats(ctx context.Context) (model.LoanStats, error)
	DashboardStats(ctx context.Context) (model.DashboardStats, error)
	RecentActivity(ctx context.Context, limit int) ([]model.Activity, error)
	RecordActivity(ctx context.Context, event kafka.CirculationEvent) error
}

var _ CirculationService = (*service.Service)(nil)
