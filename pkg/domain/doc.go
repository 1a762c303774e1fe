/*
Package domain contains the core domain models for the Syrinx control core.

It defines the fundamental entities of the fluidic platform: Devices,
Vessels, typed Links, TransferPlans and the shared error taxonomy. This
package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Device: a physical actuator (syringe pump, peristaltic pump,
    thermostat, relay, linear actuator).
  - Vessel: a container with a transactional volume ledger.
  - Link: a directed, typed physical connection (volumetric, gas, thermal).
  - TransferPlan: an ordered list of pump cycles realizing one liquid move.
*/
package domain
