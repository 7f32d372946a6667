// Request decoding and validation.
//
// Clients of this API send loosely typed JSON: coordinates and ids arrive as
// numbers or as numeric strings, and a missing body must produce the same
// "field required" error as a missing field. Request structs therefore use
// the Flex* types below and are checked with go-playground/validator.
//
// Each validated field carries its error contract in struct tags:
//
//	code:"AUTH_003" msg:"user_token requerido" status:"400"
//
// The first failing field in declaration order (embedded structs included)
// decides the response. status defaults to 400.

package handlers

import (
	"bytes"
	"errors"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tbourn/go-geochat-backend/internal/http/middleware"
	"github.com/tbourn/go-geochat-backend/internal/services"
	"github.com/tbourn/go-geochat-backend/internal/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError is the first failed field of a request.
type ValidationError struct {
	Field   string
	Code    string
	Message string
	Status  int
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// validateRequest runs the validator on req (a pointer to struct) and maps
// the first failure to its tagged error contract.
func validateRequest(req any) *ValidationError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Code: CodeMissingCredentials, Message: "Solicitud inválida", Status: http.StatusBadRequest}
	}

	fe := verrs[0]
	t := reflect.TypeOf(req)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	ve := &ValidationError{Field: fe.Field(), Code: CodeMissingCredentials, Message: fe.Field() + " requerido", Status: http.StatusBadRequest}
	if sf, found := t.FieldByName(fe.StructField()); found {
		if code := sf.Tag.Get("code"); code != "" {
			ve.Code = code
		}
		if msg := sf.Tag.Get("msg"); msg != "" {
			ve.Message = msg
		}
		if s, err := strconv.Atoi(sf.Tag.Get("status")); err == nil {
			ve.Status = s
		}
	}
	return ve
}

// bind decodes the JSON body into dst. An empty or malformed body leaves dst
// (partially) zero so that validation reports the missing fields.
func bind(c *gin.Context, dst any) {
	if c.Request == nil || c.Request.Body == nil {
		return
	}
	if err := json.NewDecoder(c.Request.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		middleware.LoggerFrom(c).Debug().Err(err).Msg("request body not decodable")
	}
}

// rawBody reads the whole request body and restores it for later readers.
func rawBody(c *gin.Context) []byte {
	if c.Request == nil || c.Request.Body == nil {
		return nil
	}
	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(b))
	return b
}

// FlexFloat accepts a JSON number or a numeric string. Anything else decodes
// to NaN, which fails the latitude/longitude validators.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(b)), `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		*f = FlexFloat(math.NaN())
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// Value returns f as a float64 and whether it holds a usable number.
func (f *FlexFloat) Value() (float64, bool) {
	if f == nil || math.IsNaN(float64(*f)) {
		return 0, false
	}
	return float64(*f), true
}

// ptr returns a pointer to the value, or nil when it is absent or invalid.
func (f *FlexFloat) ptr() *float64 {
	v, ok := f.Value()
	if !ok {
		return nil
	}
	return &v
}

// FlexInt accepts a JSON number or a numeric string; unparseable values
// decode to 0.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(b)), `"`))
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = FlexInt(v)
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		*n = FlexInt(int64(v))
		return nil
	}
	*n = 0
	return nil
}

// Int returns n or def when n is nil.
func (n *FlexInt) Int(def int) int {
	if n == nil {
		return def
	}
	return int(*n)
}

// FlexBool accepts true/false, 0/1 and their string forms. Any other
// non-empty string counts as true.
type FlexBool bool

func (v *FlexBool) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	s := strings.TrimSpace(strings.Trim(raw, `"`))
	if p, err := strconv.ParseBool(s); err == nil {
		*v = FlexBool(p)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*v = f != 0
		return nil
	}
	*v = s != ""
	return nil
}

// queryOr returns the query parameter key when present, otherwise body.
func queryOr(c *gin.Context, key string, body *FlexInt, def int) int {
	if q, ok := c.GetQuery(key); ok {
		return utils.AtoiDefault(strings.TrimSpace(q), def)
	}
	return body.Int(def)
}

// formatTime renders t in the API's date layout (UTC).
func formatTime(t time.Time) string { return t.UTC().Format(services.DateLayout) }

// formatTimePtr is formatTime for optional timestamps.
func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
