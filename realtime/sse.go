package realtime

import (
	"bytes"
	"net/http"
	"time"

	"taqui-realtime/realtime/domain"
	"taqui-realtime/realtime/infra"

	"go.uber.org/zap"
)

// appendFrame escreve o frame no formato text/event-stream.
// Keep-alive vira um comentário, ignorado pelo EventSource do navegador.
func appendFrame(b []byte, f domain.Frame) []byte {
	if f.KeepAlive {
		b = append(b, ": "...)
		b = append(b, f.Data...)
		return append(b, "\n\n"...)
	}

	b = append(b, "event: "...)
	b = append(b, f.Name...)
	b = append(b, '\n')
	for line := range bytes.Lines(f.Data) {
		b = append(b, "data: "...)
		b = append(b, bytes.TrimRight(line, "\r\n")...)
		b = append(b, '\n')
	}
	return append(b, '\n')
}

// serveStream escreve os frames do receiver até o cliente desconectar.
// O receiver é fechado na saída.
func serveStream(w http.ResponseWriter, r *http.Request, rcv *infra.Receiver, keepAlive time.Duration, logger *zap.Logger) {
	defer rcv.Close()

	rc := http.NewResponseController(w)
	// o WriteTimeout do servidor derrubaria o stream
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Warn("stream not flushable", zap.Error(err))
		return
	}

	buf := make([]byte, 0, 512)
	for f := range rcv.Frames(r.Context(), keepAlive) {
		buf = appendFrame(buf[:0], f)
		if _, err := w.Write(buf); err != nil {
			logger.Debug("stream closed", zap.Error(err))
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
