package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body into dst. Unknown fields are ignored since the
// web client posts whole form models.
func decodeJSON(r *http.Request, dst interface{}) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperrors.BadRequest("Request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequest("Invalid JSON body").WithDetails("reason", err.Error())
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
	if err != nil {
		return nil, apperrors.BadRequest("Could not read request body")
	}
	if len(body) > maxJSONBody {
		return nil, apperrors.BadRequest("Request body too large")
	}
	return body, nil
}

// flexString accepts a JSON string or number. Prices arrive both ways from
// form inputs.
type flexString struct {
	Value string
	Set   bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.Value, f.Set = strings.TrimSpace(s), true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("expected a string or number")
	}
	f.Value, f.Set = n.String(), true
	return nil
}

func (f flexString) ptr() *string {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// flexInt accepts a JSON number or a numeric string.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if !s.Set || s.Value == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s.Value, 64)
	if err != nil || v != math.Trunc(v) {
		return errors.New("expected an integer")
	}
	if math.Abs(v) > math.MaxInt32 {
		return errors.New("integer out of range")
	}
	f.Value, f.Set = int(v), true
	return nil
}

func (f flexInt) ptr() *int {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// rawText turns a JSON value into text: strings are unquoted, anything else is
// kept as its JSON encoding.
func rawText(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	text := string(raw)
	return &text
}

// stringList accepts a single string or an array of strings.
func stringList(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one = strings.TrimSpace(one); one == "" {
			return nil, nil
		}
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, apperrors.BadRequest("images must be a string or an array of strings")
	}
	out := make([]string, 0, len(many))
	for _, s := range many {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return v
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperrors.BadRequest("Invalid " + key)
	}
	return &v, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.BadRequest("Invalid " + key)
	}
	return &v, nil
}
