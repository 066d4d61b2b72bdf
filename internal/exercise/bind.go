package exercise

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/code735/boilerplate-project-exercisetracker/internal/models"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && !math.IsNaN(f)
	})
	v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
		_, err := models.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// bindCreateUser reads a CreateUserRequest from a JSON or form body.
func bindCreateUser(r *http.Request) (*models.CreateUserRequest, error) {
	var req models.CreateUserRequest
	if isJSON(r) {
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
	} else {
		if err := parseForm(r); err != nil {
			return nil, err
		}
		req.Username = r.PostFormValue("username")
	}
	return &req, check(&req)
}

// bindAddExercise reads an AddExerciseRequest from a JSON or form body.
func bindAddExercise(r *http.Request) (*models.AddExerciseRequest, error) {
	var req models.AddExerciseRequest
	if isJSON(r) {
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
	} else {
		if err := parseForm(r); err != nil {
			return nil, err
		}
		req.Description = r.PostFormValue("description")
		req.Date = r.PostFormValue("date")
		if raw := strings.TrimSpace(r.PostFormValue("duration")); raw != "" {
			d, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: duration must be a number", ErrValidation)
			}
			req.Duration = &d
		}
	}
	return &req, check(&req)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %s has the wrong type", ErrValidation, typeErr.Field)
		}
		return fmt.Errorf("%w: malformed JSON body", ErrValidation)
	}
	return nil
}

func parseForm(r *http.Request) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mt == "multipart/form-data" {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("%w: malformed form body", ErrValidation)
	}
	return nil
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrValidation, fe.Field())
	case "finite":
		return fmt.Errorf("%w: %s must be a finite number", ErrValidation, fe.Field())
	case "gte":
		return fmt.Errorf("%w: %s must be at least %s", ErrValidation, fe.Field(), fe.Param())
	case "calendar_date":
		return fmt.Errorf("%w: %s must be a date in YYYY-MM-DD format", ErrValidation, fe.Field())
	default:
		return fmt.Errorf("%w: %s is invalid", ErrValidation, fe.Field())
	}
}
