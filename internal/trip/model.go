package trip

import (
	"strings"
	"time"

	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Trip is one driving record. Dates use YYYY-MM-DD and times HH:MM,
// matching the paper logbook the office migrated from.
type Trip struct {
	ID                 types.ID  `json:"id"`
	AccountID          *types.ID `json:"account_id,omitempty"`
	StartDate          string    `json:"start_date"`
	StartTime          *string   `json:"start_time,omitempty"`
	EndDate            string    `json:"end_date"`
	EndTime            *string   `json:"end_time,omitempty"`
	VehicleNumber      string    `json:"vehicle_number"`
	Department         *string   `json:"department,omitempty"`
	DriverName         string    `json:"driver_name"`
	Purpose            string    `json:"purpose"`
	Destination        string    `json:"destination"`
	Waypoint           *string   `json:"waypoint,omitempty"`
	CumulativeDistance *float64  `json:"cumulative_distance,omitempty"`
	FuelAmount         *float64  `json:"fuel_amount,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type CreateTripRequest struct {
	StartDate          string   `json:"start_date"`
	StartTime          *string  `json:"start_time"`
	EndDate            string   `json:"end_date"`
	EndTime            *string  `json:"end_time"`
	VehicleNumber      string   `json:"vehicle_number"`
	Department         *string  `json:"department"`
	DriverName         string   `json:"driver_name"`
	Purpose            string   `json:"purpose"`
	Destination        string   `json:"destination"`
	Waypoint           *string  `json:"waypoint"`
	CumulativeDistance *float64 `json:"cumulative_distance"`
	FuelAmount         *float64 `json:"fuel_amount"`
}

type UpdateTripRequest struct {
	StartDate          *string  `json:"start_date"`
	StartTime          *string  `json:"start_time"`
	EndDate            *string  `json:"end_date"`
	EndTime            *string  `json:"end_time"`
	VehicleNumber      *string  `json:"vehicle_number"`
	Department         *string  `json:"department"`
	DriverName         *string  `json:"driver_name"`
	Purpose            *string  `json:"purpose"`
	Destination        *string  `json:"destination"`
	Waypoint           *string  `json:"waypoint"`
	CumulativeDistance *float64 `json:"cumulative_distance"`
	FuelAmount         *float64 `json:"fuel_amount"`
}

// ListFilter narrows the trip listing.
type ListFilter struct {
	Department    string
	VehicleNumber string
	From          string
	To            string
	Limit         int
	Offset        int
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Validate checks a trip before it is stored.
func (t *Trip) Validate() error {
	details := map[string]string{}

	if strings.TrimSpace(t.VehicleNumber) == "" {
		details["vehicle_number"] = "vehicle number is required"
	}
	if strings.TrimSpace(t.DriverName) == "" {
		details["driver_name"] = "driver name is required"
	}
	if strings.TrimSpace(t.Purpose) == "" {
		details["purpose"] = "purpose is required"
	}
	if strings.TrimSpace(t.Destination) == "" {
		details["destination"] = "destination is required"
	}

	start, err := time.Parse(dateLayout, t.StartDate)
	if err != nil {
		details["start_date"] = "start date must be YYYY-MM-DD"
	}
	end, err := time.Parse(dateLayout, t.EndDate)
	if err != nil {
		details["end_date"] = "end date must be YYYY-MM-DD"
	}

	if t.StartTime != nil {
		if _, err := time.Parse(timeLayout, *t.StartTime); err != nil {
			details["start_time"] = "start time must be HH:MM"
		}
	}
	if t.EndTime != nil {
		if _, err := time.Parse(timeLayout, *t.EndTime); err != nil {
			details["end_time"] = "end time must be HH:MM"
		}
	}

	if len(details) == 0 {
		if end.Before(start) {
			details["end_date"] = "trip cannot end before it starts"
		} else if end.Equal(start) && t.StartTime != nil && t.EndTime != nil && *t.EndTime < *t.StartTime {
			details["end_time"] = "trip cannot end before it starts"
		}
	}

	if len(details) > 0 {
		return errors.Validation("validation failed", details)
	}
	return nil
}
