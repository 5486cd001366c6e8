package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aouyang1/go-ndvi-forecaster/series"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "query"} {
			if name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]; name != "" && name != "-" {
				return name
			}
		}
		return ""
	})
}

// Token is a raw historical value. JSON bodies may carry it as a number or a string.
type Token string

func (t *Token) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Token(s)
	default:
		*t = Token(b)
	}
	return nil
}

// PredictRequest carries the historical values, region and optional backend of a forecast
type PredictRequest struct {
	NDVI1   Token  `json:"ndvi1" form:"ndvi1" query:"ndvi1" validate:"max=64"`
	NDVI2   Token  `json:"ndvi2" form:"ndvi2" query:"ndvi2" validate:"max=64"`
	NDVI3   Token  `json:"ndvi3" form:"ndvi3" query:"ndvi3" validate:"max=64"`
	NDVI4   Token  `json:"ndvi4" form:"ndvi4" query:"ndvi4" validate:"max=64"`
	NDVI5   Token  `json:"ndvi5" form:"ndvi5" query:"ndvi5" validate:"max=64"`
	Region  string `json:"region" form:"region" query:"region" validate:"required,max=64"`
	Backend string `json:"backend" form:"backend" query:"backend" validate:"omitempty,max=64"`
}

// Values returns the provided historical tokens oldest first. Absent fields are skipped so a
// short request fails the arity check.
func (r *PredictRequest) Values() []string {
	res := make([]string, 0, series.HistoryLen)
	for _, tok := range []Token{r.NDVI1, r.NDVI2, r.NDVI3, r.NDVI4, r.NDVI5} {
		if tok == "" {
			continue
		}
		res = append(res, string(tok))
	}
	return res
}

// ChartRequest is a PredictRequest rendered as an html chart
type ChartRequest struct {
	PredictRequest
	Title string `query:"title" default:"NDVI forecast" validate:"max=128"`
}

// readAndValidateRequest binds the request, sets default values and validates the struct.
func readAndValidateRequest(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := defaults.Set(req); err != nil {
		return fmt.Errorf("unable to set request defaults, %w", err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return &RequestError{Field: fe.Field(), Message: errorMessage(fe)}
		}
		return err
	}
	return nil
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
