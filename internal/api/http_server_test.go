package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gardenplots/internal/config"
	"gardenplots/internal/database"
	"gardenplots/internal/events"
	"gardenplots/internal/models"
	"gardenplots/internal/repository"
	"gardenplots/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	adminP = models.Principal{UserID: "admin-1", FullName: "Admin", Role: models.RoleAdmin}
	aliceP = models.Principal{UserID: "alice", FullName: "Alice", Email: "alice@example.com", Role: models.RoleUser}
	bobP   = models.Principal{UserID: "bob", FullName: "Bob", Role: models.RoleUser}
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	auth    *JWTAuthenticator
	bus     *events.EventBus
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewSQLite(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.APIConfig{Auth: config.APIAuthConfig{JWTSecret: "test-secret", JWTIssuer: "gardenplots-test"}}
	bus := events.NewEventBus()
	validator := service.NewPaymentValidator(2026, 12, nil)

	svc := Services{
		Gardens:  service.NewGardenService(db, repository.NewMemoryListingCache(), time.Minute, bus, nil, &logger),
		Bookings: service.NewBookingService(db, validator, bus, nil, nil, &logger),
		Users:    service.NewUserService(db, &logger),
		Chat:     service.NewChatService(db, repository.NewMemoryBroker(), bus, nil, &logger),
		Ready:    db.Ping,
	}
	srv := NewHTTPServer(cfg, svc, &logger)
	return &testAPI{t: t, handler: srv.Handler(), auth: srv.auth, bus: bus}
}

func (a *testAPI) token(p models.Principal) string {
	tok, err := a.auth.Issue(p, time.Hour)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path string, p *models.Principal, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, apiPrefix+path, rdr)
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(*p))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) createGarden(plots int) *models.Garden {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/gardens", &adminP, models.GardenInput{
		Name:           "Oak Row",
		Address:        "Lenina 1",
		TotalPlots:     plots,
		BasePriceCents: 2500,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[*models.Garden](a.t, rec)
}

func validReserve(months int) map[string]any {
	return map[string]any{
		"duration_months": months,
		"card_number":     "4111 1111 1111 1111",
		"expiry":          "12/30",
		"cvv":             "123",
	}
}

func TestReserveAndCancelFlow(t *testing.T) {
	api := newTestAPI(t)
	g := api.createGarden(2)
	carolP := models.Principal{UserID: "carol", Role: models.RoleUser}

	rec := api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &aliceP, validReserve(3))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody[*models.Booking](t, rec)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.Equal(t, int64(7500), booking.TotalPriceCents)
	assert.Equal(t, "1111", booking.CardLast4)
	assert.Equal(t, apiPrefix+"/bookings/"+booking.ID, rec.Header().Get("Location"))

	rec = api.do(http.MethodGet, "/gardens/"+g.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[*models.Garden](t, rec).AvailablePlots)

	// the same user again
	rec = api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &aliceP, validReserve(1))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DuplicateBooking", decodeBody[errorResponse](t, rec).Error)

	rec = api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &bobP, validReserve(1))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// no plots left
	rec = api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &carolP, validReserve(1))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "PolicyRejected", decodeBody[errorResponse](t, rec).Error)

	rec = api.do(http.MethodPost, "/bookings/"+booking.ID+"/cancel", &bobP, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/bookings/"+booking.ID+"/cancel", &adminP, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/bookings/"+booking.ID+"/cancel", &aliceP, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusCancelled, decodeBody[*models.Booking](t, rec).Status)

	rec = api.do(http.MethodPost, "/bookings/"+booking.ID+"/cancel", &aliceP, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "AlreadyCancelled", decodeBody[errorResponse](t, rec).Error)

	rec = api.do(http.MethodPost, "/bookings/missing/cancel", &aliceP, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the plot is free again and alice may rebook
	rec = api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &aliceP, validReserve(12))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/me/bookings", &aliceP, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*models.Booking](t, rec), 2)
}

func TestReserveValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	g := api.createGarden(5)

	cases := []struct {
		name   string
		mutate func(map[string]any)
		kind   string
	}{
		{"card format", func(b map[string]any) { b["card_number"] = "1234" }, "InvalidCardFormat"},
		{"expired", func(b map[string]any) { b["expiry"] = "01/20" }, "CardExpired"},
		{"unreadable expiry", func(b map[string]any) { b["expiry"] = "soon" }, "CardExpired"},
		{"cvv", func(b map[string]any) { b["cvv"] = "12" }, "InvalidCvv"},
		{"duration", func(b map[string]any) { b["duration_months"] = 13 }, "InvalidDuration"},
		{"card before cvv", func(b map[string]any) { b["card_number"] = "x"; b["cvv"] = "" }, "InvalidCardFormat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := validReserve(3)
			tc.mutate(body)
			rec := api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &aliceP, body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, tc.kind, decodeBody[errorResponse](t, rec).Error)
		})
	}

	rec := api.do(http.MethodPost, "/gardens/missing/bookings", &aliceP, validReserve(3))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &aliceP, map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthAndRoles(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/me/bookings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, apiPrefix+"/me/bookings", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	other := &JWTAuthenticator{secret: []byte("other"), issuer: "gardenplots-test"}
	forged, err := other.Issue(aliceP, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, apiPrefix+"/me/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rr = httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rec = api.do(http.MethodPost, "/gardens", &aliceP, models.GardenInput{Name: "x", TotalPlots: 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/admin/bookings/export?from=2026-01-01&to=2026-12-31", &aliceP, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/gardens", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = api.do(http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/me/profile", &aliceP, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decodeBody[*models.User](t, rec).FullName)

	rec = api.do(http.MethodPut, "/me/profile", &aliceP, profileRequest{FullName: "Alice Smith"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/users/alice", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice Smith", decodeBody[models.PublicProfile](t, rec).FullName)
	assert.NotContains(t, rec.Body.String(), "alice@example.com")

	rec = api.do(http.MethodPut, "/me/profile", &aliceP, profileRequest{FullName: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiptAndExport(t *testing.T) {
	api := newTestAPI(t)
	g := api.createGarden(2)

	rec := api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &aliceP, validReserve(2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody[*models.Booking](t, rec)

	rec = api.do(http.MethodGet, "/bookings/"+booking.ID+"/receipt", &aliceP, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = api.do(http.MethodGet, "/bookings/"+booking.ID+"/receipt", &bobP, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	today := time.Now().UTC().Format(dateLayout)
	rec = api.do(http.MethodGet, "/admin/bookings/export?from="+today+"&to="+today, &adminP, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	// xlsx is a zip archive
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = api.do(http.MethodGet, "/admin/bookings/export?from=bad&to="+today, &adminP, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/gardens/"+g.ID+"/bookings", &adminP, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*models.Booking](t, rec), 1)
}

func TestGardenAdminEndpoints(t *testing.T) {
	api := newTestAPI(t)
	g := api.createGarden(3)

	rec := api.do(http.MethodPut, "/gardens/"+g.ID, &adminP, models.GardenInput{Name: "Oak Row II", TotalPlots: 4, BasePriceCents: 3000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Oak Row II", decodeBody[*models.Garden](t, rec).Name)

	rec = api.do(http.MethodGet, "/gardens/search?q=Oak", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*models.Garden](t, rec), 1)

	rec = api.do(http.MethodGet, "/gardens/owner/"+adminP.UserID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*models.Garden](t, rec), 1)

	rec = api.do(http.MethodPost, "/gardens/"+g.ID+"/bookings", &aliceP, validReserve(1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodDelete, "/gardens/"+g.ID, &adminP, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	other := models.Principal{UserID: "admin-2", Role: models.RoleAdmin}
	rec = api.do(http.MethodDelete, "/gardens/"+g.ID, &other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChatOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	// bob opens the stream first so his profile exists
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+apiPrefix+"/conversations/alice/stream", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+api.token(bobP))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rec := api.do(http.MethodPost, "/conversations/bob/messages", &aliceP, sendMessageRequest{Content: "is plot 3 sunny?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var ev models.ChatEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "alice", ev.SenderID)
	assert.Equal(t, "is plot 3 sunny?", ev.Content)

	rec = api.do(http.MethodGet, "/conversations", &bobP, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	convs := decodeBody[[]*models.Conversation](t, rec)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)

	rec = api.do(http.MethodGet, "/conversations/alice/messages", &bobP, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*models.Message](t, rec), 1)

	rec = api.do(http.MethodPost, "/conversations/bob/messages", &aliceP, sendMessageRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	api := newTestAPI(t)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", nil, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/readyz", nil, nil).Code)

	rec := api.do(http.MethodGet, "/no-such-route", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decodeBody[errorResponse](t, rec).Error)

	logger := zerolog.New(io.Discard)
	down := NewHTTPServer(config.APIConfig{}, Services{Ready: func(context.Context) error { return io.ErrUnexpectedEOF }}, &logger)
	rec = httptest.NewRecorder()
	down.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, apiPrefix+"/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, retryAfterSeconds, rec.Header().Get("Retry-After"))
}

func TestRateLimitByIP(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewSQLite(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	cfg := config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2}}
	srv := NewHTTPServer(cfg, Services{Gardens: service.NewGardenService(db, nil, 0, nil, nil, &logger)}, &logger)
	h := srv.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, apiPrefix+"/gardens", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
