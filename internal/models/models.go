// Package models holds the domain values shared between stores, clients
// and the HTTP surface.
package models

import "time"

// Coordinates is a device position. Owned by the location store; downstream
// consumers treat it as read-only and compare by value.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is the reverse-geocoded locality for a Coordinates value.
type Address struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// UserIdentity is the locally stored account record. PasswordDigest is a
// bcrypt hash; the field keeps the original storage name "password" so
// existing persisted data stays readable.
type UserIdentity struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	PasswordDigest string `json:"password"`
}

// WeatherSnapshot is the fully-replaced current-weather value. A snapshot
// is never merged; each successful fetch produces a new one.
type WeatherSnapshot struct {
	TemperatureC   float64   `json:"temperature"`
	WindSpeed      float64   `json:"windspeed"`
	WindDirection  float64   `json:"winddirection"`
	ConditionCode  int       `json:"weathercode"`
	ObservedAt     time.Time `json:"time"`
	ConditionLabel string    `json:"weatherText"`
}
