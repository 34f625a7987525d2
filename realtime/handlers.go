package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"taqui-realtime/middleware/apierror"
	"taqui-realtime/middleware/auth"
	"taqui-realtime/realtime/application"
	"taqui-realtime/realtime/domain"
	"taqui-realtime/realtime/infra"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	maxMessageLen  = 1000
	maxRequestBody = 16 << 10
)

// Handlers liga as rotas de grupo ao broadcaster, ao indicador de digitação e ao
// armazenamento de mensagens.
type Handlers struct {
	Broadcaster *infra.Broadcaster
	Typing      *application.Coordinator
	Messages    domain.MessageStore
	// Membership nil deixa qualquer usuário autenticado acessar qualquer grupo.
	Membership domain.Membership
	KeepAlive  time.Duration
	Logger     *zap.Logger
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	_, group, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	// inscreve antes de responder: quando o cliente vê o 200, já recebe eventos
	rcv := h.Broadcaster.Subscribe(domain.GroupTopic(group))
	serveStream(w, r, rcv, h.KeepAlive, h.logger().With(zap.Stringer("group", group)))
}

func (h *Handlers) StartTyping(w http.ResponseWriter, r *http.Request) {
	p, group, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	h.Typing.RegisterActivity(domain.User{ID: p.ID, Username: p.Username}, group)
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) EndTyping(w http.ResponseWriter, r *http.Request) {
	p, group, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	h.Typing.ClearActivity(p.ID, group)
	w.WriteHeader(http.StatusOK)
}

type messageBody struct {
	Content string `json:"content"`
}

func (h *Handlers) CreateMessage(w http.ResponseWriter, r *http.Request) {
	p, group, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	content, ok := readContent(w, r)
	if !ok {
		return
	}

	m, err := h.Messages.Create(r.Context(), p.ID, group, content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Broadcaster.Send(domain.NewMessage(m), domain.GroupTopic(group))
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) EditMessage(w http.ResponseWriter, r *http.Request) {
	p, group, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	msgID, ok := h.ownedMessage(w, r, p, group)
	if !ok {
		return
	}
	content, ok := readContent(w, r)
	if !ok {
		return
	}

	m, err := h.Messages.Edit(r.Context(), group, msgID, content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Broadcaster.Send(domain.EditMessage(m), domain.GroupTopic(group))
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	p, group, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	msgID, ok := h.ownedMessage(w, r, p, group)
	if !ok {
		return
	}

	if err := h.Messages.Delete(r.Context(), group, msgID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Broadcaster.Send(domain.DeleteMessage(group, msgID), domain.GroupTopic(group))
	w.WriteHeader(http.StatusOK)
}

// groupRequest lê o principal e o grupo da rota e confere a participação.
// Em caso de erro já respondeu e retorna ok=false.
func (h *Handlers) groupRequest(w http.ResponseWriter, r *http.Request) (auth.Principal, uuid.UUID, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		apierror.Write(w, http.StatusUnauthorized, apierror.ErrInvalidToken)
		return auth.Principal{}, uuid.Nil, false
	}
	group, err := uuid.Parse(mux.Vars(r)["group_id"])
	if err != nil {
		apierror.Write(w, http.StatusNotFound, apierror.ErrUnknownGroup)
		return auth.Principal{}, uuid.Nil, false
	}
	if h.Membership != nil {
		if err := h.Membership.CheckMember(r.Context(), p.ID, group); err != nil {
			h.writeError(w, r, err)
			return auth.Principal{}, uuid.Nil, false
		}
	}
	return p, group, true
}

// ownedMessage confere que a mensagem existe no grupo e é do principal.
func (h *Handlers) ownedMessage(w http.ResponseWriter, r *http.Request, p auth.Principal, group uuid.UUID) (uuid.UUID, bool) {
	msgID, err := uuid.Parse(mux.Vars(r)["message_id"])
	if err != nil {
		apierror.Write(w, http.StatusNotFound, apierror.ErrUnknownMessage)
		return uuid.Nil, false
	}
	m, err := h.Messages.Get(r.Context(), group, msgID)
	if err != nil {
		h.writeError(w, r, err)
		return uuid.Nil, false
	}
	if m.UserID != p.ID {
		apierror.Write(w, http.StatusUnauthorized, apierror.ErrInsufficientPermissions)
		return uuid.Nil, false
	}
	return msgID, true
}

func readContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body messageBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		apierror.Write(w, http.StatusUnprocessableEntity, apierror.ValidationError("invalid body"))
		return "", false
	}
	content := sanitize(body.Content)
	switch {
	case content == "":
		apierror.Write(w, http.StatusUnprocessableEntity, apierror.ValidationError("message cannot be empty"))
		return "", false
	case len(content) > maxMessageLen:
		apierror.Write(w, http.StatusUnprocessableEntity, apierror.ValidationError("message is too long (max 1000 characters)"))
		return "", false
	}
	return content, true
}

// sanitize troca caracteres invisíveis (controle, formatação) por espaço e apara.
func sanitize(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if (unicode.IsControl(r) && r != '\n') || unicode.Is(unicode.Cf, r) {
			return ' '
		}
		return r
	}, s))
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownGroup):
		apierror.Write(w, http.StatusNotFound, apierror.ErrUnknownGroup)
	case errors.Is(err, domain.ErrUnknownMessage):
		apierror.Write(w, http.StatusNotFound, apierror.ErrUnknownMessage)
	default:
		h.logger().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		apierror.Write(w, http.StatusInternalServerError, apierror.ErrInternal)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Register monta as rotas de grupo no router. groups, messages e streams
// envolvem as rotas com os middlewares do namespace correspondente.
func (h *Handlers) Register(r *mux.Router, groups, messages, streams func(http.Handler) http.Handler) {
	g := r.PathPrefix("/api/groups/{group_id}").Subrouter()
	g.Handle("/updates", streams(http.HandlerFunc(h.Updates))).Methods(http.MethodGet)
	g.Handle("/typing", groups(http.HandlerFunc(h.StartTyping))).Methods(http.MethodPost)
	g.Handle("/typing", groups(http.HandlerFunc(h.EndTyping))).Methods(http.MethodDelete)
	g.Handle("/messages", messages(http.HandlerFunc(h.CreateMessage))).Methods(http.MethodPost)
	g.Handle("/messages/{message_id}", messages(http.HandlerFunc(h.EditMessage))).Methods(http.MethodPatch)
	g.Handle("/messages/{message_id}", messages(http.HandlerFunc(h.DeleteMessage))).Methods(http.MethodDelete)
}
