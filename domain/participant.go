// Package domain contains core concepts of the chat system.
// This file defines user profiles and connection handles.
// No runtime, network, or UI logic should be added here.
package domain

// Handle identifies one live connection. A handle belongs to exactly one user at a time.
type Handle string

// Profile holds the public fields of an account, as shown to other users.
type Profile struct {
	ID        string `json:"_id"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Image     string `json:"image,omitempty"`
	Color     int    `json:"color"`
}
