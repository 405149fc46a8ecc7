package scenario

import "fmt"

var (
	scenarios = make(map[string]*Scenario)
	order     []string
)

// Scenario is one registered failure scenario. Scenarios run serially against
// a shared cluster, in registration order; ordering is significant because
// arbitration state carries across scenarios.
type Scenario struct {
	Key  string
	Name string
	Fn   func(*Run)
}

// Register adds a scenario to the registry. Scenario packs call this from
// init().
func Register(key, name string, fn func(*Run)) {
	if _, exists := scenarios[key]; exists {
		panic(fmt.Sprintf("scenario %q registered twice", key))
	}

	scenarios[key] = &Scenario{Key: key, Name: name, Fn: fn}
	order = append(order, key)
}

// Get returns a scenario by key.
func Get(key string) (*Scenario, error) {
	sc, exists := scenarios[key]
	if !exists {
		return nil, fmt.Errorf("scenario %q not found", key)
	}

	return sc, nil
}

// All returns every registered scenario in registration order.
func All() []*Scenario {
	all := make([]*Scenario, 0, len(order))
	for _, key := range order {
		all = append(all, scenarios[key])
	}

	return all
}
