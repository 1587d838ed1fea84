package httpapi

import (
	"context"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/city-weather/internal/config"
	"github.com/i474232898/city-weather/internal/store"
	"github.com/i474232898/city-weather/internal/ui"
	"github.com/i474232898/city-weather/internal/weather"
)

const sessionCookie = "cw_session"

var validate = validator.New()

type handlers struct {
	service  *weather.Service
	sessions *store.MemoryStore
	cfg      *config.AppConfig
	title    string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, sessions *store.MemoryStore, cfg *config.AppConfig) {
	h := &handlers{
		service:  service,
		sessions: sessions,
		cfg:      cfg,
		title:    "City Weather",
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "city-weather",
			"providers": service.Providers(),
			"sessions":  sessions.Len(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/", h.index)
	app.Post("/select", h.selectForm)

	v1 := app.Group("/api/v1")
	v1.Get("/locations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"locations": cfg.Locations})
	})
	v1.Get("/selection", h.getSelection)
	v1.Post("/selection", h.postSelection)
	v1.Get("/weather/:id", h.getWeather)
}

// selectRequest is bound from either a form post or a JSON body.
type selectRequest struct {
	ID string `json:"id" form:"id" validate:"required"`
}

func (r *selectRequest) bind(c *fiber.Ctx) error {
	if err := c.BodyParser(r); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(r); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func (h *handlers) index(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	body, err := render("index.html", newPageView(h.title, sess.Selector, h.cfg.Units))
	if err != nil {
		log.Printf("ERROR: render index: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render page")
	}
	c.Type("html", "utf-8")
	return c.Send(body)
}

func (h *handlers) selectForm(c *fiber.Ctx) error {
	var req selectRequest
	if err := req.bind(c); err != nil {
		return err
	}

	if _, _, err := h.selectLocation(c, req.ID); err != nil {
		return err
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *handlers) getSelection(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(newSelectionJSON(sess.Selector))
}

func (h *handlers) postSelection(c *fiber.Ctx) error {
	var req selectRequest
	if err := req.bind(c); err != nil {
		return err
	}

	sess, changed, err := h.selectLocation(c, req.ID)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if changed {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(newSelectionJSON(sess.Selector))
}

// getWeather performs a one-off fetch outside any session.
func (h *handlers) getWeather(c *fiber.Ctx) error {
	loc, ok := h.cfg.FindLocation(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown location")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.cfg.FetchTimeout)
	defer cancel()

	report, err := h.service.Fetch(ctx, loc)
	if err != nil {
		kind := ui.Classify(err)
		return fiber.NewError(statusForKind(kind), kind.Message())
	}
	return c.JSON(report)
}

// selectLocation applies a selection to the caller's session. A session
// closed underneath the request (swept or evicted) is replaced by a fresh one.
func (h *handlers) selectLocation(c *fiber.Ctx, id string) (*store.Session, bool, error) {
	sess, err := h.session(c)
	if err != nil {
		return nil, false, err
	}

	changed, err := sess.Selector.SelectLocation(id)
	if errors.Is(err, ui.ErrClosed) {
		log.Printf("DEBUG: session %s closed during selection, starting a new one", sess.ID)
		h.sessions.Delete(sess.ID)
		if sess, err = h.newSession(c); err != nil {
			return nil, false, err
		}
		changed, err = sess.Selector.SelectLocation(id)
	}
	if errors.Is(err, ui.ErrUnknownLocation) {
		return nil, false, fiber.NewError(fiber.StatusNotFound, "unknown location")
	}
	if err != nil {
		return nil, false, fiber.NewError(fiber.StatusConflict, err.Error())
	}
	if changed {
		_, loc := sess.Selector.Active()
		log.Printf("DEBUG: session %s selected %s", sess.ID, loc.Key())
	}
	return sess, changed, nil
}

// session returns the caller's session, creating one (and its cookie) if needed.
func (h *handlers) session(c *fiber.Ctx) (*store.Session, error) {
	if id := c.Cookies(sessionCookie); id != "" {
		if sess, err := h.sessions.Get(id); err == nil {
			return sess, nil
		}
	}
	return h.newSession(c)
}

func (h *handlers) newSession(c *fiber.Ctx) (*store.Session, error) {
	sel, err := ui.NewSelector(h.cfg.Locations, ui.NewPanel(h.service, h.cfg.FetchTimeout))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	sess := &store.Session{ID: uuid.NewString(), Selector: sel}
	h.sessions.Save(sess)

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return sess, nil
}

func statusForKind(kind ui.ErrorKind) int {
	switch kind {
	case ui.KindTimeout:
		return fiber.StatusGatewayTimeout
	case ui.KindNotFound:
		return fiber.StatusNotFound
	case ui.KindConfig, ui.KindCanceled:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadGateway
	}
}

type errorJSON struct {
	Kind    ui.ErrorKind `json:"kind"`
	Message string       `json:"message"`
}

type panelJSON struct {
	State      string          `json:"state"`
	Generation uint64          `json:"generation"`
	Report     *weather.Report `json:"report,omitempty"`
	Error      *errorJSON      `json:"error,omitempty"`
}

type selectionJSON struct {
	Active   int              `json:"active"`
	Location weather.Location `json:"location"`
	Panel    panelJSON        `json:"panel"`
}

func newSelectionJSON(sel *ui.Selector) selectionJSON {
	snap := sel.Snapshot()

	pj := panelJSON{State: snap.State.Name(), Generation: snap.Generation}
	switch s := snap.State.(type) {
	case ui.Loading:
	case ui.Loaded:
		r := s.Report
		pj.Report = &r
	case ui.Failed:
		pj.Error = &errorJSON{Kind: s.Kind, Message: s.Message}
	}

	return selectionJSON{Active: snap.Active, Location: snap.Location, Panel: pj}
}
