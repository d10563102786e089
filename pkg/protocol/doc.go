// Package protocol defines the control messages exchanged with the practice
// service over the conversation channel and their JSON wire encoding.
package protocol
