// Package session drives a voice practice session.
//
// Transition is a pure function from the current State and one Event to the
// next State and the Commands to run. Runner owns the single event queue:
// user actions, transport callbacks and capture results are posted as events,
// applied one at a time, and the resulting commands are executed in order.
package session
