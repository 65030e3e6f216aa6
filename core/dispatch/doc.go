// Package dispatch commits a validated selection to a vehicle.
//
// Each Attempt walks idle -> sending -> completed|failed. The Controller
// refuses a new attempt while the previous one is unresolved, copies the
// selection at dispatch time and guarantees every attempt reaches a
// terminal state: an acknowledgment that never arrives, or a send step
// exceeding its deadline, resolves as completed; a publish error, an
// explicit rejection or shutdown resolves as failed.
package dispatch
