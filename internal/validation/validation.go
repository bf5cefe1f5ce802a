// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package validation wraps go-playground/validator and turns its errors
// into ordered, human-readable field messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/olegiv/gymsite/internal/util"
)

// Validator validates structs and single values with custom gymsite tags:
// notblank (non-empty after trimming), httpurl, imageref (http(s) URL or
// site-relative path) and rfc3339.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator. Field names in messages come from json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails on empty tags or nil funcs.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return util.IsHTTPURL(fl.Field().String())
	})
	_ = v.RegisterValidation("imageref", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return util.IsHTTPURL(s) || (strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//"))
	})
	_ = v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	})

	return &Validator{validate: v}
}

// Struct validates s and returns one message per failing field, in
// declaration order. A nil result means s is valid.
func (v *Validator) Struct(s any) []string {
	return Messages(v.validate.Struct(s))
}

// Rule validates one named value against a validator tag string.
type Rule struct {
	Field string
	Value any
	Tag   string
}

// Rules applies each rule in order and returns one message per failing rule.
// It is used where limits are only known at runtime.
func (v *Validator) Rules(rules ...Rule) []string {
	var msgs []string
	for _, r := range rules {
		err := v.validate.Var(r.Value, r.Tag)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msgs = append(msgs, message(r.Field, verrs[0]))
		} else if err != nil {
			msgs = append(msgs, fmt.Sprintf("%s is invalid", r.Field))
		}
	}
	return msgs
}

// Messages converts a validator error into field messages. Non-validation
// errors yield a single generic message.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"request is invalid"}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe.Field(), fe))
	}
	return msgs
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "httpurl":
		return fmt.Sprintf("%s must be an http or https URL", field)
	case "imageref":
		return fmt.Sprintf("%s must be an http or https URL or a site path", field)
	case "rfc3339":
		return fmt.Sprintf("%s must be an RFC 3339 timestamp", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must match the format %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
