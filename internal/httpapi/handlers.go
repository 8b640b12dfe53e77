// Package httpapi exposes the state stores over a JSON HTTP surface.
// Routes mutate the stores; the stores persist synchronously, so a
// response implies the change is durable.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wanderapp/wander/internal/credentials"
	"github.com/wanderapp/wander/internal/models"
	"github.com/wanderapp/wander/internal/observability"
	"github.com/wanderapp/wander/internal/place"
	"github.com/wanderapp/wander/internal/store"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	directory  *credentials.Directory
	auth       *store.AuthStore
	settings   *store.SettingsStore
	location   *store.LocationStore
	weather    *store.WeatherStore
	favourites *store.FavouritesStore
	logger     *zap.Logger
	// StoragePing, when set, is called by the health check. Used when the
	// backend is memcached.
	storagePing func() error
}

// NewHandler returns a new Handler. storagePing may be nil.
func NewHandler(
	directory *credentials.Directory,
	auth *store.AuthStore,
	settings *store.SettingsStore,
	location *store.LocationStore,
	weather *store.WeatherStore,
	favourites *store.FavouritesStore,
	logger *zap.Logger,
	storagePing func() error,
) *Handler {
	return &Handler{
		directory:   directory,
		auth:        auth,
		settings:    settings,
		location:    location,
		weather:     weather,
		favourites:  favourites,
		logger:      logger,
		storagePing: storagePing,
	}
}

// NewRouter assembles the full route table with middleware applied.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(limiter))
	api.Use(TimeoutMiddleware(requestTimeout))

	api.HandleFunc("/auth/register", h.PostRegister).Methods("POST")
	api.HandleFunc("/auth/login", h.PostLogin).Methods("POST")
	api.HandleFunc("/auth/logout", h.PostLogout).Methods("POST")
	api.HandleFunc("/auth/session", h.GetSession).Methods("GET")
	api.HandleFunc("/auth/profile", h.PatchProfile).Methods("PATCH")

	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.PatchSettings).Methods("PATCH")

	api.HandleFunc("/location", h.GetLocation).Methods("GET")
	api.HandleFunc("/location", h.DeleteLocation).Methods("DELETE")
	api.HandleFunc("/location/acquire", h.PostAcquire).Methods("POST")
	api.HandleFunc("/location/dismiss", h.PostDismiss).Methods("POST")

	api.HandleFunc("/weather", h.GetWeather).Methods("GET")

	api.HandleFunc("/favourites", h.GetFavourites).Methods("GET")
	api.HandleFunc("/favourites", h.PostFavourite).Methods("POST")
	api.HandleFunc("/favourites/toggle", h.PostToggleFavourite).Methods("POST")
	api.HandleFunc("/favourites/{id}", h.DeleteFavourite).Methods("DELETE")

	return router
}

type userView struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PostRegister handles POST /api/auth/register. A successful registration
// also signs the user in.
func (h *Handler) PostRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "request body is not valid JSON")
		return
	}

	user, err := h.directory.Register(body.Name, body.Email, body.Password, body.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, credentials.ErrEmailTaken):
			writeError(w, r, http.StatusConflict, "EMAIL_TAKEN", err.Error())
		case errors.Is(err, credentials.ErrNameRequired),
			errors.Is(err, credentials.ErrEmailInvalid),
			errors.Is(err, credentials.ErrPasswordWeak),
			errors.Is(err, credentials.ErrPasswordMismatch):
			writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "INTERNAL", "registration failed")
			h.logger.Error("register", zap.Error(err))
		}
		return
	}

	h.auth.Login(user)
	writeJSON(w, http.StatusCreated, userView{Name: user.Name, Email: user.Email})
}

// PostLogin handles POST /api/auth/login.
func (h *Handler) PostLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "request body is not valid JSON")
		return
	}

	user, err := h.directory.Verify(body.Email, body.Password)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "BAD_CREDENTIALS", "invalid email or password")
		return
	}

	h.auth.Login(user)
	writeJSON(w, http.StatusOK, userView{Name: user.Name, Email: user.Email})
}

// PostLogout handles POST /api/auth/logout. Always succeeds.
func (h *Handler) PostLogout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// GetSession handles GET /api/auth/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	user, ok := h.auth.Current()
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "AUTH_REQUIRED", "no active session")
		return
	}
	writeJSON(w, http.StatusOK, userView{Name: user.Name, Email: user.Email})
}

// PatchProfile handles PATCH /api/auth/profile. Only provided fields change.
func (h *Handler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := h.auth.Current()
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "AUTH_REQUIRED", "sign in to edit the profile")
		return
	}

	var body store.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "request body is not valid JSON")
		return
	}

	h.auth.UpdateUser(body)
	if body.Name != nil {
		// Keep the registered directory in step with the session profile.
		if err := h.directory.Rename(current.Email, *body.Name); err != nil {
			h.logger.Warn("directory rename", zap.Error(err))
		}
	}

	user, _ := h.auth.Current()
	writeJSON(w, http.StatusOK, userView{Name: user.Name, Email: user.Email})
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Snapshot())
}

// PatchSettings handles PATCH /api/settings. Only provided fields change.
// Revoking location access also clears the held location.
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DarkMode          *bool   `json:"darkMode"`
		TempUnit          *string `json:"tempUnit"`
		LocationAccess    *bool   `json:"locationAccess"`
		PushNotifications *bool   `json:"pushNotifications"`
		AutoSuggestions   *bool   `json:"autoSuggestions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "request body is not valid JSON")
		return
	}

	if body.TempUnit != nil {
		if err := h.settings.SetTempUnit(*body.TempUnit); err != nil {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
			return
		}
	}
	if body.DarkMode != nil {
		h.settings.SetDarkMode(*body.DarkMode)
	}
	if body.PushNotifications != nil {
		h.settings.SetPushNotifications(*body.PushNotifications)
	}
	if body.AutoSuggestions != nil {
		h.settings.SetAutoSuggestions(*body.AutoSuggestions)
	}
	if body.LocationAccess != nil {
		h.settings.SetLocationAccess(*body.LocationAccess)
		if !*body.LocationAccess {
			h.location.Clear()
		}
	}

	writeJSON(w, http.StatusOK, h.settings.Snapshot())
}

type placeView struct {
	ID       place.ID `json:"id"`
	Name     string   `json:"name"`
	Icon     string   `json:"icon"`
	Category string   `json:"category,omitempty"`
	Address  string   `json:"address,omitempty"`
	Distance float64  `json:"distance,omitempty"`
}

func toPlaceView(f place.Feature) placeView {
	v := placeView{ID: place.Resolve(f), Name: place.DisplayName(f), Icon: place.Icon(f)}
	if f.Properties != nil {
		v.Category = f.Properties.Category
		v.Address = f.Properties.AddressLine2
		v.Distance = f.Properties.Distance
	}
	return v
}

type locationView struct {
	Coordinates *models.Coordinates `json:"coordinates"`
	Address     *models.Address     `json:"address"`
	Places      []placeView         `json:"places"`
	Prompt      bool                `json:"prompt"`
	Loading     bool                `json:"loading"`
	Error       string              `json:"error,omitempty"`
}

func toLocationView(s store.LocationState) locationView {
	v := locationView{
		Coordinates: s.Coordinates,
		Address:     s.Address,
		Places:      make([]placeView, 0, len(s.Places)),
		Prompt:      s.Prompt,
		Loading:     s.Loading,
		Error:       s.LastError,
	}
	for _, f := range s.Places {
		v.Places = append(v.Places, toPlaceView(f))
	}
	return v
}

// GetLocation handles GET /api/location.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toLocationView(h.location.State()))
}

// PostAcquire handles POST /api/location/acquire. Position lookup runs in
// the request; address and nearby places settle in the background, so the
// returned state may still be loading.
func (h *Handler) PostAcquire(w http.ResponseWriter, r *http.Request) {
	if err := h.location.Acquire(r.Context()); err != nil {
		state := h.location.State()
		writeError(w, r, http.StatusServiceUnavailable, "POSITION_UNAVAILABLE", state.LastError)
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Debug("acquire failed", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, toLocationView(h.location.State()))
}

// PostDismiss handles POST /api/location/dismiss.
func (h *Handler) PostDismiss(w http.ResponseWriter, r *http.Request) {
	h.location.DismissPrompt()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteLocation handles DELETE /api/location.
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	h.location.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type weatherView struct {
	Temperature   int     `json:"temperature"`
	Unit          string  `json:"unit"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
	ConditionCode int     `json:"conditionCode"`
	Condition     string  `json:"condition"`
	ObservedAt    string  `json:"observedAt"`
}

// GetWeather handles GET /api/weather. Temperature is converted to the
// configured display unit.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.weather.Snapshot()
	resp := struct {
		Loading bool         `json:"loading"`
		Weather *weatherView `json:"weather"`
	}{Loading: h.weather.Loading()}

	if ok {
		resp.Weather = &weatherView{
			Temperature:   h.settings.ConvertTemp(snap.TemperatureC),
			Unit:          h.settings.Snapshot().TempUnit,
			WindSpeed:     snap.WindSpeed,
			WindDirection: snap.WindDirection,
			ConditionCode: snap.ConditionCode,
			Condition:     snap.ConditionLabel,
			ObservedAt:    snap.ObservedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type favouriteView struct {
	placeView
	Favourite bool `json:"favourite"`
}

// GetFavourites handles GET /api/favourites.
func (h *Handler) GetFavourites(w http.ResponseWriter, r *http.Request) {
	entries := h.favourites.List()
	views := make([]favouriteView, 0, len(entries))
	for _, e := range entries {
		views = append(views, favouriteView{placeView: toPlaceView(e.Feature), Favourite: true})
	}
	writeJSON(w, http.StatusOK, views)
}

// requireSession gates mutating favourites routes on an active session.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if !h.auth.Active() {
		writeError(w, r, http.StatusUnauthorized, "AUTH_REQUIRED", "sign in to save favourites")
		return false
	}
	return true
}

// PostFavourite handles POST /api/favourites. The body is the place feature
// to save. Saving an already saved place is a no-op.
func (h *Handler) PostFavourite(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}
	var feature place.Feature
	if err := json.NewDecoder(r.Body).Decode(&feature); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "request body is not a place feature")
		return
	}
	h.favourites.Add(feature)
	writeJSON(w, http.StatusCreated, map[string]any{"id": place.Resolve(feature), "favourite": true})
}

// PostToggleFavourite handles POST /api/favourites/toggle and reports the
// resulting membership.
func (h *Handler) PostToggleFavourite(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}
	var feature place.Feature
	if err := json.NewDecoder(r.Body).Decode(&feature); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "request body is not a place feature")
		return
	}
	saved := h.favourites.Toggle(feature)
	writeJSON(w, http.StatusOK, map[string]any{"id": place.Resolve(feature), "favourite": saved})
}

// DeleteFavourite handles DELETE /api/favourites/{id}.
func (h *Handler) DeleteFavourite(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}
	id := place.ID(mux.Vars(r)["id"])
	for _, e := range h.favourites.List() {
		if e.UniqueID == id {
			h.favourites.Remove(e.Feature)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "favourite not found")
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := map[string]string{"storage": "healthy"}
	if h.storagePing != nil {
		if err := h.storagePing(); err != nil {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
			checks["storage"] = "unhealthy"
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"status":    status,
		"service":   "wander",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with code, message and
// requestId when a correlation ID is in context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID, _ = v.(string)
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
