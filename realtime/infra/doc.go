// Package infra implementa o broadcaster de tópicos em memória.
//
// Entrega é best-effort: Send nunca bloqueia; um receiver lento perde os frames
// mais antigos do próprio buffer e segue recebendo os novos.
package infra
