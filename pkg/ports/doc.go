/*
Package ports defines the driven ports (interfaces) for the Syrinx core.

These interfaces decouple the control core from external implementations,
allowing it to work with various run-record stores and analytical
measurement sources.

# Key Interfaces

  - RunStore: persists closed-loop run records (memory, Redis).
  - MeasurementSource: the analytical collaborator handing scalar
    measurements to the closed-loop controller.
*/
package ports
