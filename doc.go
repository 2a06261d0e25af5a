// Package unwind provides a sequential saga orchestration engine.
//
// A saga is an ordered chain of steps, each pairing a forward action with a
// compensating (undo) action. The orchestrator runs the chain forward, one
// step at a time. If any action fails, every step that had already completed
// is compensated in reverse (last-completed-first) order, best effort: a
// failing compensation never prevents the remaining ones from running. For
// more on sagas, see this 2017 JOTB talk by Caitie McCaffrey:
// https://www.youtube.com/watch?v=0UTOLRTwOX0
//
// Overview
//
// 1. Describe your steps:
//    - Write an action and a compensation for each unit of work. Both receive
//      the shared *Context; whatever an action outputs becomes visible to
//      later steps (and to compensations) under the step's name.
// 2. Assemble a saga:
//    - Use `NewBuilder` to create a `Builder`, append steps with `AddStep`
//      (or `AddRegistered`, for steps held in a `StepRegistry`), and call
//      `Build` to obtain an immutable `*Saga`.
// 3. Run it:
//    - Create an `Orchestrator` with `NewOrchestrator`, optionally wiring
//      logging, metrics, and a run archive through options.
//    - Call `Run` with a fresh `*Context`. `Run` never panics and never
//      throws: every outcome, including rollback failures, is reported in
//      the returned `*Result`.
//
// Example:
//
// For a detailed, documented example, refer to the examples/order program.
package unwind
