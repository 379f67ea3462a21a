// register.go wires the gossip protocol into the sim package's protocol
// registry. This init() runs when any package imports sim/gossip, breaking the
// import cycle between sim/ (interface owner) and sim/gossip/ (implementation).
package gossip

import "github.com/learning-sim/learning-sim/sim"

func init() {
	sim.RegisterProtocol(Name, func(cfg sim.Config) (sim.Protocol, error) {
		return New(cfg)
	})
}
