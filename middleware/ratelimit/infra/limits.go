package infra

import (
	"fmt"
	"os"

	"taqui-realtime/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

// Limits mapeia namespace -> configuração do bucket.
type Limits map[string]domain.BucketConfig

// DefaultLimits são os valores usados pelas rotas do chat.
func DefaultLimits() Limits {
	return Limits{
		"auth":     {Capacity: 2, RefillRate: 1},
		"groups":   {Capacity: 10, RefillRate: 1},
		"messages": {Capacity: 25, RefillRate: 1},
		"invites":  {Capacity: 5, RefillRate: 1},
	}
}

// For retorna a configuração do namespace. Namespace desconhecido é erro de
// programação (rota registrada sem limite), então entra em pânico.
func (l Limits) For(namespace string) domain.BucketConfig {
	cfg, ok := l[namespace]
	if !ok {
		panic(fmt.Sprintf("ratelimit: no bucket config for namespace %q", namespace))
	}
	return cfg
}

type limitsFile struct {
	Limits map[string]domain.BucketConfig `yaml:"limits"`
}

// LoadLimits lê um arquivo YAML no formato
//
//	limits:
//	  messages: {capacity: 25, refill_rate: 1}
//
// e sobrepõe os valores em base. Namespaces não citados continuam com o valor de base.
func LoadLimits(path string, base Limits) (Limits, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read limits file: %w", err)
	}
	return ParseLimits(raw, base)
}

func ParseLimits(raw []byte, base Limits) (Limits, error) {
	var f limitsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse limits file: %w", err)
	}

	out := make(Limits, len(base)+len(f.Limits))
	for ns, cfg := range base {
		out[ns] = cfg
	}
	for ns, cfg := range f.Limits {
		if ns == "" {
			return nil, fmt.Errorf("parse limits file: empty namespace")
		}
		out[ns] = cfg
	}
	return out, nil
}
