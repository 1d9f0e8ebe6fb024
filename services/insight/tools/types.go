// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools implements the data transformation operations the
// assistant can apply to a session's tables.
//
// Each tool is defined by a Definition that describes its parameters
// (serializable to JSON Schema for LLM tool calling) and implements
// the Tool interface. Mutating tools return the post-operation table
// collection; the caller snapshots it as a new session version.
// Non-mutating tools (previews) return rows only.
//
// Thread Safety:
//
//	Tools and the Registry are safe for concurrent use. Tools never
//	mutate the input collection.
package tools

import (
	"context"
	"errors"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

var (
	// ErrUnknownTool is returned when a tool name is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrBadParams is returned when parameters fail validation.
	ErrBadParams = errors.New("invalid tool parameters")
)

// ParamType represents the type of a tool parameter.
type ParamType string

const (
	ParamTypeString ParamType = "string"
	ParamTypeInt    ParamType = "integer"
	ParamTypeFloat  ParamType = "number"
	ParamTypeBool   ParamType = "boolean"
	ParamTypeArray  ParamType = "array"
	ParamTypeObject ParamType = "object"
)

// ParamDef defines a single parameter for a tool.
type ParamDef struct {
	// Type is the parameter type.
	Type ParamType `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description"`

	// Required indicates if the parameter must be provided.
	Required bool `json:"required"`

	// Default is the value used when the parameter is absent.
	Default any `json:"default,omitempty"`

	// Enum restricts values to a set of options.
	Enum []string `json:"enum,omitempty"`
}

// Definition describes a tool's interface.
type Definition struct {
	// Name is the unique identifier for the tool.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// Parameters defines the input parameters.
	Parameters map[string]ParamDef `json:"parameters"`

	// Mutating indicates the tool produces a new table state.
	// Mutating tools create a session version on success.
	Mutating bool `json:"mutating"`
}

// Result contains the outcome of a tool application.
type Result struct {
	// Tool is the name of the tool that produced this result.
	Tool string `json:"tool"`

	// Label is a human-readable summary of what was done, used as
	// the version node label.
	Label string `json:"label"`

	// Table is the table the tool operated on.
	Table string `json:"table"`

	// RowsBefore and RowsAfter report the row count change.
	RowsBefore int `json:"rows_before"`
	RowsAfter  int `json:"rows_after"`

	// Tables is the post-operation collection. Nil for
	// non-mutating tools.
	Tables *tabular.Collection `json:"-"`

	// Preview holds result rows for non-mutating tools.
	Preview []map[string]any `json:"preview,omitempty"`
}

// Tool defines the interface for table operations.
//
// Implementations must be safe for concurrent use and must treat the
// input collection as immutable.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Definition returns the tool's parameter schema.
	Definition() Definition

	// Apply runs the tool against the collection.
	//
	// Inputs:
	//   ctx - Context for cancellation
	//   tc - The session's current table collection (read-only)
	//   params - Input parameters
	//
	// Outputs:
	//   *Result - The outcome, including the new collection for
	//             mutating tools
	//   error - ErrBadParams for validation failures
	Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error)
}
