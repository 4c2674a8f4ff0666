package web

import (
	"net/http"

	logx "chime/pkg/logx"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	if err := s.hub.Serve(w, r, userID); err != nil {
		// The upgrader already wrote the failure response.
		s.log.Debug("ws upgrade", logx.Int64("user_id", userID), logx.Err(err))
	}
}
