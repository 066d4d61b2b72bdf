package exercise

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// writeJSON writes a JSON response with the given status code. A value that
// cannot be encoded becomes a 500 with a JSON error body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("encode response: %v", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// writeError logs err and writes it as {"error": "..."}.
func writeError(w http.ResponseWriter, err error, fallback string) {
	he := MapError(err, fallback)
	log.Printf("%s: %v", fallback, err)
	writeJSON(w, he.Status, map[string]string{"error": he.Message})
}

// Handler holds the exercise tracker HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the /api/users endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateUser)
	r.Get("/", h.ListUsers)
	r.Post("/{id}/exercises", h.AddExercise)
	r.Get("/{id}/logs", h.GetLog)
}

// CreateUser handles POST /api/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	req, err := bindCreateUser(r)
	if err != nil {
		writeError(w, err, "Error creating user")
		return
	}
	user, err := h.svc.CreateUser(r.Context(), req.Username)
	if err != nil {
		writeError(w, err, "Error creating user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListUsers handles GET /api/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeError(w, err, "Error fetching users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// AddExercise handles POST /api/users/{id}/exercises.
func (h *Handler) AddExercise(w http.ResponseWriter, r *http.Request) {
	req, err := bindAddExercise(r)
	if err != nil {
		writeError(w, err, "Error adding exercise")
		return
	}
	resp, err := h.svc.AddExercise(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err, "Error adding exercise")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLog handles GET /api/users/{id}/logs.
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.GetLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Error fetching exercise log")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
