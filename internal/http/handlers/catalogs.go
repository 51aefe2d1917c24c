package handlers

import (
	"net/http"

	"tattty/internal/catalog"
)

func (a *App) Catalogs(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"catalogs": catalog.All()})
}
