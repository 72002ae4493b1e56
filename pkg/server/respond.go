package server

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/model"
)

type itemResponse struct {
	model.Item
	Index    int            `json:"index"`
	Position model.Position `json:"position"`
	Nearest  []string       `json:"nearest"`
}

type detailResponse struct {
	Open bool        `json:"open"`
	Item *model.Item `json:"item,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeDetail(w http.ResponseWriter, s *engine.LocalSurface) {
	var resp detailResponse
	if it, ok := s.Detail(); ok {
		resp.Open, resp.Item = true, &it
	}
	writeJSON(w, http.StatusOK, resp)
}
