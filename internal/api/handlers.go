package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gardenplots/internal/domain"
	"gardenplots/internal/models"
	"gardenplots/internal/report"
	"gardenplots/internal/service"

	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		if err := s.svc.Ready(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			w.Header().Set("Retry-After", retryAfterSeconds)
			writeError(w, http.StatusServiceUnavailable, string(domain.KindStoreUnavailable), "store is not reachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// gardens

func (s *HTTPServer) handleListGardens(w http.ResponseWriter, r *http.Request) {
	gardens, err := s.svc.Gardens.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gardens)
}

func (s *HTTPServer) handleListAvailable(w http.ResponseWriter, r *http.Request) {
	gardens, err := s.svc.Gardens.ListAvailable(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gardens)
}

func (s *HTTPServer) handleSearchGardens(w http.ResponseWriter, r *http.Request) {
	gardens, err := s.svc.Gardens.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gardens)
}

func (s *HTTPServer) handleGardensByOwner(w http.ResponseWriter, r *http.Request) {
	gardens, err := s.svc.Gardens.ListByOwner(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gardens)
}

func (s *HTTPServer) handleGetGarden(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Gardens.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *HTTPServer) handleCreateGarden(w http.ResponseWriter, r *http.Request) {
	var in models.GardenInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidInput), "invalid request body")
		return
	}
	g, err := s.svc.Gardens.Create(r.Context(), principal(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *HTTPServer) handleUpdateGarden(w http.ResponseWriter, r *http.Request) {
	var in models.GardenInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidInput), "invalid request body")
		return
	}
	g, err := s.svc.Gardens.Update(r.Context(), principal(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *HTTPServer) handleDeleteGarden(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Gardens.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleGardenBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListForGarden(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// bookings

type reserveRequest struct {
	DurationMonths int    `json:"duration_months"`
	CardNumber     string `json:"card_number"`
	// Expiry is "MM/YY"; expiry_month and expiry_year are accepted instead.
	Expiry      string `json:"expiry"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

func (req reserveRequest) payment() models.PaymentInfo {
	p := models.PaymentInfo{
		CardNumber:  req.CardNumber,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		CVV:         req.CVV,
	}
	if strings.TrimSpace(req.Expiry) != "" {
		// нечитаемый срок оставляем нулевым: валидатор вернет CardExpired в своем порядке
		month, year, err := service.ParseExpiry(req.Expiry)
		if err != nil {
			month, year = 0, 0
		}
		p.ExpiryMonth, p.ExpiryYear = month, year
	}
	return p
}

func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidInput), "invalid request body")
		return
	}
	b, err := s.svc.Bookings.Reserve(r.Context(), principal(r), chi.URLParam(r, "id"), req.DurationMonths, req.payment())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", apiPrefix+"/bookings/"+b.ID)
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bookings.Cancel(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bookings.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListMine(r.Context(), principal(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := principal(r)
	b, err := s.svc.Bookings.Get(ctx, p, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := report.ReceiptData{Booking: b, HolderName: p.FullName, IssuedAt: time.Now().UTC()}
	// участок мог быть удален, квитанция все равно выдается
	if g, err := s.svc.Gardens.Get(ctx, b.GardenID); err == nil {
		data.GardenAddress = g.Address
		if data.Booking.GardenName == "" {
			data.Booking.GardenName = g.Name
		}
	}
	if prof, err := s.svc.Users.GetPublicProfile(ctx, b.UserID); err == nil && prof.FullName != "" {
		data.HolderName = prof.FullName
	}

	var buf bytes.Buffer
	if err := report.WriteReceiptPDF(&buf, data); err != nil {
		s.log.Error().Err(err).Str("booking_id", b.ID).Msg("failed to render receipt")
		writeError(w, http.StatusInternalServerError, "Internal", "failed to render receipt")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ReceiptFileName(b)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, errFrom := time.Parse(dateLayout, q.Get("from"))
	to, errTo := time.Parse(dateLayout, q.Get("to"))
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidInput), "from and to must be YYYY-MM-DD")
		return
	}
	// конец периода включительно
	end := to.Add(24*time.Hour - time.Nanosecond)

	bookings, err := s.svc.Bookings.ListForPeriod(r.Context(), principal(r), from, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteBookingsXLSX(&buf, from, to, bookings); err != nil {
		s.log.Error().Err(err).Msg("failed to build export")
		writeError(w, http.StatusInternalServerError, "Internal", "failed to build export")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ExportFileName(from, to)))
	_, _ = w.Write(buf.Bytes())
}

// users

func (s *HTTPServer) handlePublicProfile(w http.ResponseWriter, r *http.Request) {
	prof, err := s.svc.Users.GetPublicProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (s *HTTPServer) handleMyProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.EnsureUser(r.Context(), principal(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type profileRequest struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidInput), "invalid request body")
		return
	}
	u, err := s.svc.Users.UpdateProfile(r.Context(), principal(r), req.FullName, req.AvatarURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// chat

func (s *HTTPServer) handleConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.svc.Chat.Conversations(r.Context(), principal(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *HTTPServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := s.svc.Chat.Messages(r.Context(), principal(r), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *HTTPServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidInput), "invalid request body")
		return
	}
	msg, err := s.svc.Chat.Send(r.Context(), principal(r), chi.URLParam(r, "userID"), req.Content)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
