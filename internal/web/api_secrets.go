package web

import (
	"encoding/json"
	"net/http"

	"github.com/crewdhq/crewd/internal/store"
)

func (s *Server) registerSecretsAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/secrets", s.listSecrets)
	mux.HandleFunc("POST /api/secrets", s.setSecret)
	mux.HandleFunc("DELETE /api/secrets/{name}", s.deleteSecret)
}

// listSecrets returns secret metadata only; values never leave the vault
// through the API.
func (s *Server) listSecrets(w http.ResponseWriter, r *http.Request) {
	if s.keeper == nil {
		jsonError(w, "vault is not configured", http.StatusServiceUnavailable)
		return
	}
	secrets, err := s.keeper.List()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if secrets == nil {
		secrets = []store.Secret{}
	}
	jsonResponse(w, secrets)
}

func (s *Server) setSecret(w http.ResponseWriter, r *http.Request) {
	if s.keeper == nil {
		jsonError(w, "vault is not configured", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Value       string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Value == "" {
		jsonError(w, "name and value are required", http.StatusBadRequest)
		return
	}

	if err := s.keeper.Set(body.Name, body.Description, body.Value); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok", "name": body.Name})
}

func (s *Server) deleteSecret(w http.ResponseWriter, r *http.Request) {
	if s.keeper == nil {
		jsonError(w, "vault is not configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.keeper.Delete(r.PathValue("name")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}
