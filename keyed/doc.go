// Package keyed fornece o mapa concorrente por chave usado pelo rate limit,
// pelo broadcaster de tópicos e pelos indicadores de digitação.
//
// O shard de cada chave é escolhido por xxhash dos bytes da chave, então não
// existe lock global: operações em chaves de shards diferentes seguem em paralelo.
package keyed
