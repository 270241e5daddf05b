package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func f(v float64) *float64 { return &v }

func TestUpdateLocationRequestBounds(t *testing.T) {
	validate := validator.New()

	cases := []struct {
		name string
		req  UpdateLocationRequest
		ok   bool
	}{
		{"valid", UpdateLocationRequest{Latitude: f(40.7), Longitude: f(-74.0)}, true},
		{"origin", UpdateLocationRequest{Latitude: f(0), Longitude: f(0)}, true},
		{"latitude too high", UpdateLocationRequest{Latitude: f(90.5), Longitude: f(0)}, false},
		{"latitude too low", UpdateLocationRequest{Latitude: f(-91), Longitude: f(0)}, false},
		{"longitude too high", UpdateLocationRequest{Latitude: f(0), Longitude: f(180.1)}, false},
		{"missing latitude", UpdateLocationRequest{Longitude: f(0)}, false},
		{"bad status", UpdateLocationRequest{Latitude: f(0), Longitude: f(0), Status: "parked"}, false},
		{"heading over 360", UpdateLocationRequest{Latitude: f(0), Longitude: f(0), Heading: f(361)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Struct(tc.req)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestEmergencyAlertRequestValidation(t *testing.T) {
	validate := validator.New()

	if err := validate.Struct(EmergencyAlertRequest{Type: "medical", Message: "nurse needed"}); err != nil {
		t.Fatalf("minimal alert should pass: %v", err)
	}
	if err := validate.Struct(EmergencyAlertRequest{Type: "weather", Message: "x"}); err == nil {
		t.Fatal("unknown alert type must be rejected")
	}
	if err := validate.Struct(EmergencyAlertRequest{Type: "safety"}); err == nil {
		t.Fatal("empty message must be rejected")
	}
}
