package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	studentsHandler := handlers.NewStudentsHandler(s.services.Enrollment)
	attendanceHandler := handlers.NewAttendanceHandler(s.services.Pipeline, s.config.Layout, s.config.Recognition.Tolerance)

	s.router.Get("/", handlers.Info(s.services.Version))
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Method(http.MethodGet, "/metrics", s.services.Metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Students
		r.Get("/students", studentsHandler.List)
		r.Post("/students/register", studentsHandler.Register)
		r.Delete("/students/{id}", studentsHandler.Delete)
		r.Get("/groups", studentsHandler.Groups)

		// Attendance
		r.Post("/attendance/recognize", attendanceHandler.Recognize)
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/attendance/download", attendanceHandler.Download)
	})
}

