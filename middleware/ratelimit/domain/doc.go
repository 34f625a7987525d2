// Package domain define contratos e tipos de domínio para rate limit e concorrência:
// a chave (namespace + componente), a configuração do bucket e a decisão.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
