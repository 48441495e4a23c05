package domain

import "fmt"

// Default eviction batch sizes per quota step. Bulk sizes shrink with the
// specificity of the quota so a single admission never clears more headroom
// than the next few cycles can refill.
const (
	DefaultEvictBatchAll     = 50
	DefaultEvictBatchClient  = 25
	DefaultEvictBatchNetwork = 10
)

// QuotaConfig holds the capacity ceilings enforced over the stored
// collection. All ceilings are active simultaneously; an article may count
// toward several at once.
type QuotaConfig struct {
	// MaxTotal caps the whole collection.
	MaxTotal int `yaml:"max_total"`

	// MaxClient caps the aggregate count across all client networks.
	MaxClient int `yaml:"max_client"`

	// MaxPerNetwork caps individual client networks by name.
	MaxPerNetwork map[string]int `yaml:"max_per_network"`

	// MaxBreaking caps articles with the breaking flag set.
	MaxBreaking int `yaml:"max_breaking"`

	// ClientNetworks is the fixed set of networks subject to the client
	// aggregate ceiling.
	ClientNetworks []string `yaml:"client_networks"`

	EvictBatchAll     int `yaml:"evict_batch_all"`
	EvictBatchClient  int `yaml:"evict_batch_client"`
	EvictBatchNetwork int `yaml:"evict_batch_network"`
}

func (q QuotaConfig) Validate() error {
	if q.MaxTotal <= 0 {
		return fmt.Errorf("max_total must be positive, got %d", q.MaxTotal)
	}
	if q.MaxClient <= 0 {
		return fmt.Errorf("max_client must be positive, got %d", q.MaxClient)
	}
	if q.MaxBreaking <= 0 {
		return fmt.Errorf("max_breaking must be positive, got %d", q.MaxBreaking)
	}
	for name, ceiling := range q.MaxPerNetwork {
		if ceiling <= 0 {
			return fmt.Errorf("per-network ceiling for %q must be positive, got %d", name, ceiling)
		}
		if !q.IsClientNetwork(name) {
			return fmt.Errorf("per-network ceiling for %q does not match any client network", name)
		}
	}
	return nil
}

// Normalize fills in default eviction batch sizes where unset.
func (q QuotaConfig) Normalize() QuotaConfig {
	if q.EvictBatchAll <= 0 {
		q.EvictBatchAll = DefaultEvictBatchAll
	}
	if q.EvictBatchClient <= 0 {
		q.EvictBatchClient = DefaultEvictBatchClient
	}
	if q.EvictBatchNetwork <= 0 {
		q.EvictBatchNetwork = DefaultEvictBatchNetwork
	}
	return q
}

// IsClientNetwork reports whether the named network is subject to the
// client aggregate ceiling.
func (q QuotaConfig) IsClientNetwork(network string) bool {
	for _, n := range q.ClientNetworks {
		if n == network {
			return true
		}
	}
	return false
}
