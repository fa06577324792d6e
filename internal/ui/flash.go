package ui

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "gastos_flash"

// setFlash stores n for the next full page render, which survives the
// redirect after a plain form post.
func setFlash(w http.ResponseWriter, n Notification) {
	raw, err := json.Marshal(n)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns and clears the pending notification, if any.
func popFlash(w http.ResponseWriter, r *http.Request) *Notification {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil || n.Message == "" {
		return nil
	}
	if n.Type != NotificationSuccess && n.Type != NotificationError {
		return nil
	}
	return &n
}

// redirectWithFlash finishes a plain form post.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target string, n Notification) {
	setFlash(w, n)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
