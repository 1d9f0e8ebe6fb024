// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insight

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// versionIDPattern matches engine-assigned version ids ("v0", "v17").
var versionIDPattern = regexp.MustCompile(`^v\d+$`)

// Malformed version ids are rejected at binding time so they never
// reach the engine as a storage lookup.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("version_id", func(fl validator.FieldLevel) bool {
			return versionIDPattern.MatchString(fl.Field().String())
		})
	}
}
