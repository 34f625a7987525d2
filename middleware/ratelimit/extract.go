package ratelimit

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"taqui-realtime/middleware/auth"
	"taqui-realtime/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Extractor deriva a chave do rate limit a partir do request.
type Extractor interface {
	Extract(r *http.Request) (domain.Key, error)
}

var (
	ErrMissingPrincipal = errors.New("no authenticated principal")
	ErrInvalidAddr      = errors.New("invalid remote address")
	ErrMissingHeader    = errors.New("missing header")
	ErrInvalidPathParam = errors.New("invalid path parameter")
)

// ExtractionError diz qual facet falhou e com qual status HTTP o middleware responde.
type ExtractionError struct {
	Facet  string
	Status int
	Err    error
}

func (e *ExtractionError) Error() string { return "extract " + e.Facet + ": " + e.Err.Error() }

func (e *ExtractionError) Unwrap() error { return e.Err }

// Facet é uma parte tipada do request (principal, IP, header, parâmetro de rota)
// que pode falhar sozinha.
type Facet[T any] struct {
	Name    string
	Extract func(r *http.Request) (T, error)
}

func (f Facet[T]) facetName() string { return f.Name }

func (f Facet[T]) extractAny(r *http.Request) (any, error) { return f.Extract(r) }

// AnyFacet é qualquer Facet[T]; permite passar facets de tipos diferentes juntos.
type AnyFacet interface {
	facetName() string
	extractAny(r *http.Request) (any, error)
}

// Values guarda o resultado das facets já extraídas. Leia com Value.
type Values struct {
	m map[string]any
}

// Value retorna o valor extraído pela facet f. Entra em pânico se f não fazia parte
// do extractor: é erro de montagem, não de request.
func Value[T any](v Values, f Facet[T]) T {
	raw, ok := v.m[f.Name]
	if !ok {
		panic("ratelimit: facet " + f.Name + " was not extracted")
	}
	return raw.(T)
}

// FuncExtractor extrai as facets na ordem e combina os valores numa chave.
// A primeira facet que falhar interrompe as demais e o erro dela é devolvido.
type FuncExtractor struct {
	facets  []AnyFacet
	combine func(Values) domain.Key
}

func NewFuncExtractor(combine func(Values) domain.Key, facets ...AnyFacet) *FuncExtractor {
	return &FuncExtractor{facets: facets, combine: combine}
}

func (e *FuncExtractor) Extract(r *http.Request) (domain.Key, error) {
	vals := Values{m: make(map[string]any, len(e.facets))}
	for _, f := range e.facets {
		v, err := f.extractAny(r)
		if err != nil {
			return domain.Key{}, asExtractionError(f.facetName(), err)
		}
		vals.m[f.facetName()] = v
	}
	return e.combine(vals), nil
}

func asExtractionError(facet string, err error) error {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractionError{Facet: facet, Status: http.StatusBadRequest, Err: err}
}

// UserExtractor: namespace fixo + id do usuário autenticado.
// Exige que um middleware de auth tenha colocado o principal no contexto.
type UserExtractor struct {
	Namespace string
}

func (e UserExtractor) Extract(r *http.Request) (domain.Key, error) {
	p, err := PrincipalFacet().Extract(r)
	if err != nil {
		return domain.Key{}, err
	}
	return domain.Key{Namespace: e.Namespace, Component: domain.UserComponent(p.ID)}, nil
}

// AddrExtractor: namespace fixo + IP de origem. Para rotas antes da autenticação.
type AddrExtractor struct {
	Namespace          string
	TrustXForwardedFor bool
}

func (e AddrExtractor) Extract(r *http.Request) (domain.Key, error) {
	addr, err := AddrFacet(e.TrustXForwardedFor).Extract(r)
	if err != nil {
		return domain.Key{}, err
	}
	return domain.Key{Namespace: e.Namespace, Component: domain.AddrComponent(addr)}, nil
}

func PrincipalFacet() Facet[auth.Principal] {
	return Facet[auth.Principal]{
		Name: "principal",
		Extract: func(r *http.Request) (auth.Principal, error) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				return auth.Principal{}, &ExtractionError{Facet: "principal", Status: http.StatusUnauthorized, Err: ErrMissingPrincipal}
			}
			return p, nil
		},
	}
}

// AddrFacet retorna o IP do cliente. Com trustXFF, usa o primeiro IP do
// X-Forwarded-For (cliente original); senão, RemoteAddr.
func AddrFacet(trustXFF bool) Facet[netip.Addr] {
	return Facet[netip.Addr]{
		Name: "addr",
		Extract: func(r *http.Request) (netip.Addr, error) {
			if trustXFF {
				if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
					first, _, _ := strings.Cut(xff, ",")
					if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
						return a, nil
					}
				}
			}

			remote := strings.TrimSpace(r.RemoteAddr)
			if ap, err := netip.ParseAddrPort(remote); err == nil {
				return ap.Addr(), nil
			}
			// RemoteAddr sem porta (alguns proxies/testes)
			host := remote
			if h, _, err := net.SplitHostPort(remote); err == nil {
				host = h
			}
			if a, err := netip.ParseAddr(host); err == nil {
				return a, nil
			}
			return netip.Addr{}, &ExtractionError{Facet: "addr", Status: http.StatusBadRequest, Err: ErrInvalidAddr}
		},
	}
}

// HeaderFacet lê um header obrigatório (ex.: X-Api-Key).
func HeaderFacet(name string) Facet[string] {
	return Facet[string]{
		Name: "header:" + name,
		Extract: func(r *http.Request) (string, error) {
			v := strings.TrimSpace(r.Header.Get(name))
			if v == "" {
				return "", &ExtractionError{Facet: "header:" + name, Status: http.StatusBadRequest, Err: ErrMissingHeader}
			}
			return v, nil
		},
	}
}

// PathUUIDFacet lê uma variável de rota do gorilla/mux como UUID.
func PathUUIDFacet(name string) Facet[uuid.UUID] {
	return Facet[uuid.UUID]{
		Name: "path:" + name,
		Extract: func(r *http.Request) (uuid.UUID, error) {
			id, err := uuid.Parse(mux.Vars(r)[name])
			if err != nil {
				return uuid.Nil, &ExtractionError{Facet: "path:" + name, Status: http.StatusBadRequest, Err: ErrInvalidPathParam}
			}
			return id, nil
		},
	}
}
