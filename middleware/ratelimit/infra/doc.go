// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Buckets: token bucket por chave sobre o mapa particionado (keyed)
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões
//   - Limits: configuração dos buckets por namespace (YAML)
package infra
