/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/models"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

//nolint:gochecknoglobals // reflect type lookups
var (
	durationType       = reflect.TypeOf(time.Duration(0))
	modelsDurationType = reflect.TypeOf(models.Duration(0))
	loggerDurationType = reflect.TypeOf(logger.Duration(0))
)

// EnvConfigLoader loads configuration from environment variables. Nested fields
// join their json tag names with underscores, so MESHCAST_FANOUT_FRESHNESS maps to
// cfg.Fanout.Freshness. A complete document in <prefix>CONFIG_JSON wins over
// individual variables.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{logger: log, prefix: prefix}
}

func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if raw := os.Getenv(e.prefix + "CONFIG_JSON"); raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	_, err := e.loadStruct(v, e.prefix)

	return err
}

// loadStruct reports whether any field under prefix was set.
func (e *EnvConfigLoader) loadStruct(v reflect.Value, prefix string) (bool, error) {
	t := v.Type()

	var (
		anySet bool
		errs   []error
	)

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}

		name := prefix + strings.ToUpper(strings.Split(tag, ",")[0])

		set, err := e.loadField(field, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if set && e.logger != nil {
			e.logger.Debug().Str("env", name).Msg("Loaded value from environment variable")
		}

		anySet = anySet || set
	}

	return anySet, errors.Join(errs...)
}

func (e *EnvConfigLoader) loadField(field reflect.Value, name string) (bool, error) {
	switch {
	case field.Kind() == reflect.Struct:
		return e.loadStruct(field, name+"_")
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		// Only allocate optional sections that the environment actually mentions.
		tmp := reflect.New(field.Type().Elem())
		if !field.IsNil() {
			tmp.Elem().Set(field.Elem())
		}

		set, err := e.loadStruct(tmp.Elem(), name+"_")
		if set {
			field.Set(tmp)
		}

		return set, err
	}

	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return false, nil
	}

	return true, setScalar(field, name, raw)
}

func setScalar(field reflect.Value, name, raw string) error {
	switch field.Type() {
	case durationType, modelsDurationType, loggerDurationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", name, err)
		}

		field.SetInt(int64(d))

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", name, err)
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", name, err)
		}

		field.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value for %s: %w", name, err)
		}

		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", name, err)
		}

		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(raw, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}

			field.Set(reflect.ValueOf(parts).Convert(field.Type()))

			return nil
		}

		fallthrough
	default:
		if err := json.Unmarshal([]byte(raw), field.Addr().Interface()); err != nil {
			return fmt.Errorf("unsupported value for %s: %w", name, err)
		}
	}

	return nil
}
