package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/export"
	"rentflow/internal/models"

	"github.com/shopspring/decimal"
)

type bookingResponse struct {
	ID               int64           `json:"id"`
	ItemID           int64           `json:"item_id"`
	RenterID         int64           `json:"renter_id"`
	OwnerID          int64           `json:"owner_id"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	Days             int             `json:"days"`
	DailyPrice       decimal.Decimal `json:"daily_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Status           string          `json:"status"`
	PaymentStatus    string          `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	RenterConfirmed  bool            `json:"renter_confirmed"`
	OwnerConfirmed   bool            `json:"owner_confirmed"`
	ReturnedAt       *time.Time      `json:"returned_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func newBookingResponse(b *models.Booking) bookingResponse {
	return bookingResponse{
		ID:               b.ID,
		ItemID:           b.ItemID,
		RenterID:         b.RenterID,
		OwnerID:          b.OwnerID,
		StartDate:        models.FormatDate(b.StartDate),
		EndDate:          models.FormatDate(b.EndDate),
		Days:             b.Days(),
		DailyPrice:       b.DailyPrice,
		TotalPrice:       b.TotalPrice,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		PaymentReference: b.PaymentReference,
		RenterConfirmed:  b.RenterConfirmed,
		OwnerConfirmed:   b.OwnerConfirmed,
		ReturnedAt:       b.ReturnedAt,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func newBookingList(bookings []*models.Booking) map[string]any {
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, newBookingResponse(b))
	}
	return map[string]any{"bookings": out}
}

type rangeResponse struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		ItemID        int64            `json:"item_id"`
		StartDate     string           `json:"start_date"`
		EndDate       string           `json:"end_date"`
		ProposedPrice *decimal.Decimal `json:"proposed_price"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	req := domain.CreateBookingRequest{
		ItemID:        body.ItemID,
		RenterID:      actor,
		ProposedPrice: body.ProposedPrice,
	}

	var err error
	if body.StartDate != "" {
		if req.StartDate, err = models.ParseDate(body.StartDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
			return
		}
	}
	if body.EndDate != "" {
		if req.EndDate, err = models.ParseDate(body.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date; expected YYYY-MM-DD")
			return
		}
	}

	booking, err := s.svc.Bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBookingResponse(booking))
}

// handleGetBooking shows a booking to its renter and owner only.
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := s.actorAndBooking(w, r)
	if !ok {
		return
	}

	booking, err := s.svc.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if booking.RenterID != actor && booking.OwnerID != actor {
		s.writeDomainError(w, r, fmt.Errorf("%w: not a party to this booking", domain.ErrForbidden))
		return
	}
	writeJSON(w, http.StatusOK, newBookingResponse(booking))
}

type bookingOp func(ctx context.Context, bookingID, actorID int64) (*models.Booking, error)

// bookingAction adapts an (id, actor) operation to a handler.
func (s *HTTPServer) bookingAction(op bookingOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := s.actorAndBooking(w, r)
		if !ok {
			return
		}

		booking, err := op(r.Context(), id, actor)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newBookingResponse(booking))
	}
}

func (s *HTTPServer) handleCounterOffer(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := s.actorAndBooking(w, r)
	if !ok {
		return
	}

	var body struct {
		DailyPrice decimal.Decimal `json:"daily_price"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	booking, err := s.svc.Bookings.CounterOfferBooking(r.Context(), id, body.DailyPrice, actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookingResponse(booking))
}

func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := s.actorAndBooking(w, r)
	if !ok {
		return
	}

	var (
		result bool
		err    error
	)
	switch r.PathValue("party") {
	case "renter":
		result, err = s.svc.Confirmations.ConfirmByRenter(r.Context(), id, actor)
	case "owner":
		result, err = s.svc.Confirmations.ConfirmByOwner(r.Context(), id, actor)
	default:
		writeError(w, http.StatusBadRequest, "party must be renter or owner")
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id":      id,
		"result":          result,
		"fully_confirmed": s.svc.Confirmations.IsFullyConfirmed(r.Context(), id),
	})
}

func (s *HTTPServer) handleConfirmationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id":      id,
		"fully_confirmed": s.svc.Confirmations.IsFullyConfirmed(r.Context(), id),
	})
}

func (s *HTTPServer) handleRenterBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	bookings, err := s.svc.Bookings.ListRenterBookings(r.Context(), actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookingList(bookings))
}

func (s *HTTPServer) handleOwnerRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	bookings, err := s.svc.Bookings.ListOwnerRequests(r.Context(), actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookingList(bookings))
}

// handleOwnerRentals lists accepted rentals; ?period=past switches to finished ones.
func (s *HTTPServer) handleOwnerRentals(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var upcoming bool
	switch r.URL.Query().Get("period") {
	case "", "upcoming":
		upcoming = true
	case "past":
		upcoming = false
	default:
		writeError(w, http.StatusBadRequest, "period must be upcoming or past")
		return
	}

	bookings, err := s.svc.Bookings.ListOwnerRentals(r.Context(), actor, upcoming)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookingList(bookings))
}

func (s *HTTPServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := s.svc.Items.GetItemByID(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleUnavailableRanges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	ranges, err := s.svc.Bookings.UnavailableRanges(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	out := make([]rangeResponse, 0, len(ranges))
	for _, rg := range ranges {
		out = append(out, rangeResponse{StartDate: models.FormatDate(rg.Start), EndDate: models.FormatDate(rg.End)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": id, "ranges": out})
}

func (s *HTTPServer) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	wallet, err := s.svc.Wallet.GetWallet(r.Context(), actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *HTTPServer) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	wallet, err := s.svc.Wallet.CreateWallet(r.Context(), actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

func (s *HTTPServer) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	txs, err := s.svc.Wallet.ListTransactions(r.Context(), actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*models.WalletTransaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *HTTPServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	remaining, err := s.svc.Wallet.Withdraw(r.Context(), actor, body.Amount)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawn": body.Amount, "balance": remaining})
}

func (s *HTTPServer) handleWithdrawAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	withdrawn, err := s.svc.Wallet.WithdrawAll(r.Context(), actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawn": withdrawn, "balance": decimal.Zero})
}

func (s *HTTPServer) handleStatement(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	wallet, err := s.svc.Wallet.GetWallet(r.Context(), actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	txs, err := s.svc.Wallet.ListTransactions(r.Context(), actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	// buffer the workbook so a write error cannot truncate the response
	var buf bytes.Buffer
	if err := export.WriteStatement(&buf, wallet, txs); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement_%d.xlsx"`, wallet.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	actor, ok := s.actorID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("missing or invalid %s header", s.cfg.HTTP.ActorHeader))
		return 0, false
	}
	return actor, true
}

func (s *HTTPServer) actorAndBooking(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return 0, 0, false
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return 0, 0, false
	}
	return actor, id, true
}
