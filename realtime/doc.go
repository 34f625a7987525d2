// Package realtime expõe o broadcaster e o indicador de digitação por HTTP:
// stream SSE de atualizações do grupo, endpoints de digitação e os endpoints de
// mensagem que anunciam NewMessage, EditMessage e DeleteMessage.
//
// Autenticação e rate limit ficam nos middlewares de middleware/auth e
// middleware/ratelimit; aqui o principal já está no contexto.
package realtime
