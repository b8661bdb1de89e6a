// internal/handlers/qr.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// MatchQRHandler renders a PNG QR code carrying the invite URL for a
// waiting match, so a creator can hand a second player their phone
// instead of dictating the join code.
func MatchQRHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, err := uuid.Parse(chi.URLParam(r, "match_id"))
		if err != nil {
			http.Error(w, "invalid match id", http.StatusBadRequest)
			return
		}

		desc, ok := srv.Manager.GetMatch(matchID)
		if !ok {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}

		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		inviteURL := fmt.Sprintf("%s://%s/join/%s", scheme, r.Host, desc.JoinCode)

		png, err := qrcode.Encode(inviteURL, qrcode.Medium, 256)
		if err != nil {
			srv.Logger.Warnf("match %s: qr encode failed: %v", matchID, err)
			http.Error(w, "failed to render qr code", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}
