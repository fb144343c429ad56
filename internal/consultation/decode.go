package consultation

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"NutriVida_Pro/internal/database"

	"github.com/labstack/echo/v4"
)

var (
	topLevelNumbers    = numberFields(reflect.TypeOf(database.ConsultationFields{}), "patient_id", "appointment_id")
	measurementNumbers = numberFields(reflect.TypeOf(MeasurementsInput{}))
)

// numberFields collects the JSON names of the numeric fields of t.
func numberFields(t reflect.Type, extra ...string) map[string]bool {
	out := map[string]bool{}
	for _, name := range extra {
		out[name] = true
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		kind := f.Type.Kind()
		if kind == reflect.Ptr {
			kind = f.Type.Elem().Kind()
		}
		if kind != reflect.Float64 && kind != reflect.Int64 {
			continue
		}
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" {
			out[name] = true
		}
	}
	return out
}

// bindForm decodes a consultation body. Form inputs post numbers as strings,
// so numeric fields given as "70" are read as 70 and blank ones as null. A
// string that is not a number still fails the decode.
func bindForm(c echo.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	coerceNumbers(raw, topLevelNumbers)
	if m, ok := raw["measurements"].(map[string]interface{}); ok {
		coerceNumbers(m, measurementNumbers)
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func coerceNumbers(m map[string]interface{}, numeric map[string]bool) {
	for k, v := range m {
		s, ok := v.(string)
		if !ok || !numeric[k] {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			m[k] = nil
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			m[k] = f
		}
	}
}
