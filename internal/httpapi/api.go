package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"fastfoot/internal/domain"
	"fastfoot/internal/logger"
	"fastfoot/internal/registry"
	"fastfoot/internal/till"
)

// Accounts reads the customer open-account (cari) ledger.
type Accounts interface {
	Balance(ctx context.Context, name string) (float64, error)
	ListAccounts(ctx context.Context) (map[string]float64, error)
}

// Sales reads recorded settlements for the end-of-day report.
type Sales interface {
	DailySummary(ctx context.Context, day string) (map[string]float64, error)
}

// API exposes the management endpoints the back-office screens use. Order
// flow itself goes through the websocket gateway and the ingress adapters;
// these endpoints only read state and administer tills and shifts.
type API struct {
	registry  *registry.Registry
	ledger    *till.Ledger
	accounts  Accounts
	sales     Sales
	menu      domain.Menu
	lg        *logger.Logger
	startedAt time.Time
	version   string
}

func New(reg *registry.Registry, ledger *till.Ledger, accounts Accounts, sales Sales, menu domain.Menu, version string, lg *logger.Logger) *API {
	return &API{
		registry:  reg,
		ledger:    ledger,
		accounts:  accounts,
		sales:     sales,
		menu:      menu,
		lg:        lg,
		startedAt: time.Now().UTC(),
		version:   version,
	}
}

func (a *API) Register(e *echo.Echo) {
	e.GET("/api/system/info", a.systemInfo)
	e.GET("/api/menu", a.getMenu)
	e.GET("/api/slots", a.listSlots)
	e.GET("/api/slots/:name", a.getSlot)
	e.POST("/api/tills", a.createTill)
	e.GET("/api/tills", a.listTills)
	e.POST("/api/shifts/open", a.openShift)
	e.POST("/api/shifts/close", a.closeShift)
	e.GET("/api/shifts/active", a.activeShift)
	e.GET("/api/accounts", a.listAccounts)
	e.GET("/api/accounts/:name", a.accountBalance)
	e.GET("/api/reports/daily", a.dailyReport)
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *API) systemInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service":        "fastfoot",
		"version":        a.version,
		"started_at":     a.startedAt,
		"uptime_seconds": int(time.Since(a.startedAt).Seconds()),
		"slots":          len(a.registry.SlotNames()),
	})
}

func (a *API) getMenu(c echo.Context) error {
	return c.JSON(http.StatusOK, a.menu)
}

func (a *API) listSlots(c echo.Context) error {
	out := make([]domain.SlotUpdate, 0)
	for _, name := range a.registry.SlotNames() {
		items, total, err := a.registry.Items(name)
		if err != nil {
			continue
		}
		out = append(out, domain.SlotUpdate{Slot: name, Items: items, Total: total})
	}
	return c.JSON(http.StatusOK, out)
}

func (a *API) getSlot(c echo.Context) error {
	name := c.Param("name")
	items, total, err := a.registry.Items(name)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.SlotUpdate{Slot: name, Items: items, Total: total})
}

func (a *API) createTill(c echo.Context) error {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := c.Bind(&req); err != nil || req.ID <= 0 {
		return fail(c, domain.ErrMalformedPayload)
	}
	a.ledger.RegisterTill(req.ID)
	a.lg.Info("till_registered", map[string]any{"till_id": req.ID})
	return c.JSON(http.StatusCreated, till.TillStatus{ID: req.ID})
}

func (a *API) listTills(c echo.Context) error {
	return c.JSON(http.StatusOK, a.ledger.Tills())
}

func (a *API) openShift(c echo.Context) error {
	var req struct {
		TillID         int64   `json:"till_id"`
		Cashier        string  `json:"cashier"`
		OpeningBalance float64 `json:"opening_balance"`
	}
	if err := c.Bind(&req); err != nil || req.TillID <= 0 || req.Cashier == "" {
		return fail(c, domain.ErrMalformedPayload)
	}
	shift, err := a.ledger.OpenShift(c.Request().Context(), req.TillID, req.Cashier, req.OpeningBalance)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, shift)
}

func (a *API) closeShift(c echo.Context) error {
	var req struct {
		ShiftID     int64   `json:"shift_id"`
		ClosingCash float64 `json:"closing_cash"`
		ClosingCard float64 `json:"closing_card"`
	}
	if err := c.Bind(&req); err != nil || req.ShiftID <= 0 {
		return fail(c, domain.ErrMalformedPayload)
	}
	shift, err := a.ledger.CloseShift(c.Request().Context(), req.ShiftID, req.ClosingCash, req.ClosingCard)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, shift)
}

func (a *API) activeShift(c echo.Context) error {
	var req struct {
		TillID int64 `query:"till_id"`
	}
	if err := c.Bind(&req); err != nil || req.TillID <= 0 {
		return fail(c, domain.ErrMalformedPayload)
	}
	shift, ok := a.ledger.ActiveShift(req.TillID)
	if !ok {
		return fail(c, domain.ErrShiftNotFound)
	}
	return c.JSON(http.StatusOK, shift)
}

func (a *API) listAccounts(c echo.Context) error {
	accounts, err := a.accounts.ListAccounts(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, accounts)
}

func (a *API) accountBalance(c echo.Context) error {
	name := c.Param("name")
	balance, err := a.accounts.Balance(c.Request().Context(), name)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"name": name, "balance": balance})
}

func (a *API) dailyReport(c echo.Context) error {
	day := c.QueryParam("date")
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return fail(c, domain.ErrMalformedPayload)
	}
	summary, err := a.sales.DailySummary(c.Request().Context(), day)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"date": day, "summary": summary})
}

func fail(c echo.Context, err error) error {
	return c.JSON(statusFor(err), errorBody{Error: domain.Code(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownSlot), errors.Is(err, domain.ErrShiftNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrShiftAlreadyOpen), errors.Is(err, domain.ErrShiftAlreadyClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMalformedPayload), errors.Is(err, domain.ErrInvalidTender):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
