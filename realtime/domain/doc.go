// Package domain contém os tipos do realtime: tópicos, eventos de domínio e o
// frame que trafega no stream SSE. Não depende de net/http.
package domain
