package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/auth"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/metrics"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Cohorts        *app.CohortService
	Lessons        *app.LessonService
	Enrollments    *app.EnrollmentService
	Admins         app.AdminRegistry
	Tokens         *auth.Service
	Events         *app.Broadcaster
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
	// Now is test-only; defaults to time.Now.
	Now func() time.Time
}

type handler struct {
	Deps
}

// NewRouter wires every route onto a chi router.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}
	h := &handler{Deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(accessLog(deps.Logger, deps.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api/me", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/enrollment", h.enroll)
		r.Put("/profile", h.updateProfile)
		r.Get("/lessons", h.myLessons)
		r.Get("/lessons/{lessonID}", h.myLesson)
		r.Post("/lessons/{lessonID}/submission", h.submit)
		r.Get("/submissions", h.mySubmissions)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authenticate, requireAdmin)
		r.Get("/cohorts", h.listCohorts)
		r.Post("/cohorts", h.createCohort)
		r.Put("/cohorts/{cohortID}/open", h.setCohortOpen)
		r.Get("/cohorts/{cohortID}/lessons", h.listLessons)
		r.Post("/cohorts/{cohortID}/lessons", h.createLesson)
		r.Get("/cohorts/{cohortID}/enrollments", h.listEnrollments)
		r.Put("/lessons/{lessonID}/questions", h.replaceQuestions)
		r.Get("/lessons/{lessonID}/answer-key", h.getAnswerKey)
		r.Put("/lessons/{lessonID}/answer-key", h.upsertAnswerKey)
		r.Get("/enrollments/{enrollmentID}", h.getEnrollment)
		r.Delete("/enrollments/{enrollmentID}/submissions/{lessonID}", h.removeSubmission)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate, requireAdmin)
		r.Get("/ws/admin/events", newEventFeed(deps.Events, deps.AllowedOrigins, deps.Logger).ServeWS)
	})

	return r
}
