package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
	"github.com/metinatakli/seat-booking/api"
)

func (app *Application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func newOpenAPIRouter(spec *openapi3.T) (routers.Router, error) {
	router, err := legacyrouter.NewRouter(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi router: %w", err)
	}

	return router, nil
}

// validateRequest checks requests against the OpenAPI document. Requests
// the document does not describe are left to the chi router.
func (app *Application) validateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := app.openapi.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				MultiError: true,
			},
		}

		err = openapi3filter.ValidateRequest(r.Context(), input)
		if err != nil {
			app.openAPIValidationResponse(w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *Application) openAPIValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	errs := []error{err}

	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		errs = multi
	}

	var issues []api.ValidationError
	for _, e := range errs {
		if malformed := malformedRequest(e); malformed != nil {
			app.badRequestResponse(w, r, malformed)
			return
		}

		issues = append(issues, openAPIIssues(e)...)
	}

	app.validationErrorResponse(w, r, issues)
}

// malformedRequest reports parameters and bodies that could not be decoded
// at all, as opposed to values that decode but break the schema.
func malformedRequest(err error) error {
	var reqErr *openapi3filter.RequestError
	var parseErr *openapi3filter.ParseError

	if !errors.As(err, &reqErr) || !errors.As(err, &parseErr) {
		return nil
	}

	if reqErr.Parameter != nil {
		return fmt.Errorf("%s is malformed", reqErr.Parameter.Name)
	}

	return errors.New("body contains badly-formed JSON")
}

func openAPIIssues(err error) []api.ValidationError {
	var reqErr *openapi3filter.RequestError
	if !errors.As(err, &reqErr) {
		return []api.ValidationError{{Field: "request", Issue: err.Error()}}
	}

	field := "body"
	if reqErr.Parameter != nil {
		field = reqErr.Parameter.Name
	}

	var multi openapi3.MultiError
	if errors.As(reqErr.Err, &multi) {
		var issues []api.ValidationError
		for _, e := range multi {
			issues = append(issues, schemaIssue(field, e))
		}
		return issues
	}

	if reqErr.Err == nil {
		return []api.ValidationError{{Field: field, Issue: reqErr.Reason}}
	}

	return []api.ValidationError{schemaIssue(field, reqErr.Err)}
}

func schemaIssue(field string, err error) api.ValidationError {
	var schemaErr *openapi3.SchemaError
	if !errors.As(err, &schemaErr) {
		return api.ValidationError{Field: field, Issue: err.Error()}
	}

	if pointer := schemaErr.JSONPointer(); len(pointer) > 0 {
		field = strings.Join(pointer, ".")
	}

	return api.ValidationError{Field: field, Issue: schemaErr.Reason}
}
