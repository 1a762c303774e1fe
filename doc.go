/*
Package syrinx is a fluidic automation control core for self-driving
chemistry rigs: a typed topology graph of vessels, pumps and valves, a
transfer router that turns volume requests into capacity-respecting
actuation plans, a shared-bus serial protocol with retry and backoff,
and a closed-loop controller that drives a physical process until a
stopping criterion converges.

# Concept

Syrinx models the rig as a star topology: every liquid path runs
through a device (a syringe pump's rotary valve, a peristaltic pump),
so routing is a local port lookup, not a graph search. The vessel
ledger is the only mutable state; it is updated step by step as the
hardware acknowledges each actuation, so the model always reflects
where the liquid physically is, even after a mid-plan failure.

# Key Features

  - Deterministic Routing: the same topology and endpoints always
    resolve to the same device choice.
  - Transactional Ledger: vessel volumes are debited on draw ack and
    credited on dispense ack; partial failures report exactly how much
    moved.
  - Shared-Bus Protocol: one in-flight command per bus, bounded
    timeouts, linear backoff, and an explicit invalid-command response
    so "malformed" is never confused with "absent".
  - Closed-Loop Control: threshold, noise-convergence and time-bound
    stopping criteria; expected endings are statuses, never errors.

# Usage

Build an engine from a topology description and run transfers:

	package main

	import (
		"context"
		"log"

		"github.com/openfluidics/syrinx"
	)

	func main() {
		eng, err := syrinx.New("./rig.yaml")
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		ctx := context.Background()
		outcome, err := eng.Transfer(ctx, "monomer", "reactor", 10)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("moved %.2f mL in %d steps", outcome.VolumeMoved, outcome.StepsCompleted)
	}
*/
package syrinx
