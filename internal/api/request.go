package api

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"

	"tatkald/internal/model"
)

// CreateRequest mirrors the JSON body of POST /api/tatkal. Category is
// checked by the booking service (case-insensitive, strict), not here;
// the validator only guards presence and basic shape.
type CreateRequest struct {
	Date         string             `json:"date" validate:"required,datetime=2006-01-02"`
	Train        string             `json:"train" validate:"required"`
	From         string             `json:"from" validate:"required"`
	To           string             `json:"to" validate:"required"`
	Class        string             `json:"class" validate:"required"`
	TatkalType   string             `json:"tatkalType" validate:"required"`
	Passengers   []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
	NotifyTarget string             `json:"notifyTarget,omitempty"`
}

type PassengerRequest struct {
	Name     string `json:"name" validate:"required"`
	Age      int    `json:"age" validate:"required,min=1,max=120"`
	Gender   string `json:"gender" validate:"required"`
	Berth    string `json:"berth,omitempty"`
	IDType   string `json:"idType,omitempty"`
	IDNumber string `json:"idNumber,omitempty"`
}

func (r CreateRequest) passengers() []model.Passenger {
	out := make([]model.Passenger, 0, len(r.Passengers))
	for _, p := range r.Passengers {
		out = append(out, model.Passenger{
			Name:     p.Name,
			Age:      p.Age,
			Gender:   p.Gender,
			Berth:    p.Berth,
			IDType:   p.IDType,
			IDNumber: p.IDNumber,
		})
	}
	return out
}

// validationMessage folds validator errors into one human-readable
// line naming every offending field.
func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		field := strings.ToLower(err.Field())
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s is below the minimum", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s is above the maximum", field))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("field %s must be an ISO date (YYYY-MM-DD)", field))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", field))
		}
	}
	return strings.Join(msgs, ", ")
}
