package httpapi

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mzDeaThly/data-spf/internal/line"
)

// maxWebhookBody caps the raw webhook body read before signature checking.
const maxWebhookBody = 1 << 20

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.line.configured() {
		s.logger.Error("line webhook called without channel credentials")
		writeText(w, http.StatusInternalServerError, "LINE config missing")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Bad request")
		return
	}

	if !line.VerifySignature(body, r.Header.Get(line.SignatureHeader), s.line.ChannelSecret) {
		s.logger.Warn("line webhook signature mismatch", zap.String("remote_addr", r.RemoteAddr))
		writeText(w, http.StatusBadRequest, "Bad signature")
		return
	}

	payload, err := line.ParseWebhook(body)
	if err != nil {
		s.logger.Warn("line webhook body malformed", zap.Int("bytes", len(body)), zap.Error(err))
		writeText(w, http.StatusOK, "ok")
		return
	}

	if s.dispatcher != nil && len(payload.Events) > 0 {
		s.dispatcher.Dispatch(context.WithoutCancel(r.Context()), payload.Events)
	}
	writeText(w, http.StatusOK, "ok")
}
