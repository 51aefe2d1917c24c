package handlers

import (
	"net/http"

	"tattty/pkg/licensekey"
)

func (a *App) CreateLicenseKey(w http.ResponseWriter, r *http.Request) {
	key, err := licensekey.Generate()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"licenseKey": key})
}

type licenseCheckRequest struct {
	LicenseKey string `json:"licenseKey"`
}

// CheckLicenseKey normalises the submitted key and reports whether it is well formed.
func (a *App) CheckLicenseKey(w http.ResponseWriter, r *http.Request) {
	var req licenseCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	formatted := licensekey.Format(req.LicenseKey)
	a.json(w, http.StatusOK, map[string]any{
		"licenseKey": formatted,
		"valid":      licensekey.Valid(formatted),
	})
}
