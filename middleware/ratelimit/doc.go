// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: chave (namespace + usuário ou IP), config de bucket e contratos
//   - application: decisão allow/deny e acquire com timeout, sem net/http
//   - infra: token bucket por chave, pool de slots, limites por namespace e estatísticas
//   - ratelimit (este pacote): middlewares HTTP, extração de chave e tradução para status/headers
//
// Fluxo por request:
//
//  1. O Extractor monta a chave (principal autenticado, IP, header, parâmetro de rota)
//  2. A camada application consome um token do bucket da chave
//  3. Se bloqueado, responde 429 com {"code":3000,...}; streams cheios respondem 503
//  4. Se permitido, chama o próximo handler
//
// Os limites por namespace vêm de infra.DefaultLimits e podem ser sobrescritos
// pelo arquivo YAML apontado por RATE_LIMITS_FILE (cmd/chatd).
package ratelimit
