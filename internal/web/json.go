package web

import (
	"encoding/json"
	"net/http"

	"github.com/silen72/night-light/internal/logic"
)

// SettingsResponse lists setting values by preference key.
type SettingsResponse struct {
	Settings map[string]int `json:"settings"`
	Saved    bool           `json:"saved,omitempty"`
}

func newSettingsResponse(settings logic.Settings, keys []logic.Setting, saved bool) SettingsResponse {
	res := SettingsResponse{Settings: make(map[string]int, len(keys)), Saved: saved}
	for _, s := range keys {
		res.Settings[s.Key()] = settings.Get(s)
	}
	return res
}

type gestureResponse struct {
	Button  string `json:"button"`
	Gesture string `json:"gesture"`
}

// fieldsResponse reports which fields of a preference write were accepted.
type fieldsResponse struct {
	Accepted []string `json:"accepted,omitempty"`
	Rejected []string `json:"rejected,omitempty"`
}

func (f fieldsResponse) status() int {
	if len(f.Rejected) > 0 {
		return http.StatusBadRequest
	}
	return http.StatusOK
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
