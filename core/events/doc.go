// Package events defines the dispatch board events emitted on the event bus.
//
// Available event types:
//   - AttemptStarted: a dispatch attempt entered the sending state
//   - AttemptCompleted: the operator notice was delivered (or assumed delivered)
//   - AttemptFailed: the notice could not be delivered
//   - SelectionChanged: the working selection was mutated
//   - FocusChanged: a deep link focused (or cleared) a trip
//   - DispatchRejected: a dispatch request was refused before sending
//   - IntentResolved: a deep-link intent was reconciled with the board
package events
