package handlers

import (
	"net/http"

	"couple-notes-backend/internal/metrics"
	"couple-notes-backend/internal/middleware"
	"couple-notes-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Profiles *services.ProfileService
	Partners *services.PartnerService
	Notes    *services.NoteService
	Tasks    *services.TaskService
	Widgets  *services.WidgetService
	Uploads  *services.UploadService
	Hub      *services.WSHub
}

// RouterOptions tunes the router
type RouterOptions struct {
	AuthEnabled bool
	MetricsPath string
	RequestLog  bool
}

// NewRouter builds the chi router with every API route.
// Routes are served at the root and again under /api/v1.
func NewRouter(svc Services, opts RouterOptions) http.Handler {
	profileHandler := NewProfileHandler(svc.Profiles)
	connectHandler := NewConnectHandler(svc.Partners)
	noteHandler := NewNoteHandler(svc.Notes)
	taskHandler := NewTaskHandler(svc.Tasks)
	widgetHandler := NewWidgetHandler(svc.Widgets)
	uploadHandler := NewUploadHandler(svc.Uploads)
	wsHandler := NewWebSocketHandler(svc.Hub, svc.Profiles, svc.Partners, opts.AuthEnabled)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	if opts.RequestLog {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, metrics.Handler())
	}

	api := func(r chi.Router) {
		// Public routes
		r.Post("/profile", profileHandler.CreateProfile)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(opts.AuthEnabled, svc.Profiles))

			r.Get("/profile", profileHandler.GetProfile)
			r.Put("/profile", profileHandler.UpsertProfile)

			r.Post("/connect", connectHandler.Connect)
			r.Delete("/connect", connectHandler.Disconnect)

			r.Get("/notes", noteHandler.ListNotes)
			r.Get("/notes/partner", noteHandler.ListPartnerNotes)
			r.Post("/notes", noteHandler.CreateNote)
			r.Patch("/notes", noteHandler.UpdateNote)
			r.Delete("/notes", noteHandler.DeleteNote)

			r.Get("/tasks", taskHandler.ListTasks)
			r.Post("/tasks", taskHandler.SaveTasks)

			r.Get("/widget", widgetHandler.GetWidget)
			r.Post("/widget", widgetHandler.SendWidget)

			r.Post("/uploads", uploadHandler.CreateUpload)
		})
	}

	r.Group(api)
	r.Route("/api/v1", api)

	// WebSocket route authenticates through the query string
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
