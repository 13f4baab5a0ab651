//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool holds internal helpers shared by tool implementations.
package tool

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/phuocNg964/ProMeet-AI/tool"
)

var timeType = reflect.TypeOf(time.Time{})

// GenerateJSONSchema generates a JSON schema from a reflect.Type.
//
// Struct fields honor the json tag for naming and omitempty, and a
// `jsonschema:"description=...,enum=a,enum=b,required"` tag for extra
// annotations. Fields without omitempty that are not pointers are required.
func GenerateJSONSchema(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	if t.Kind() == reflect.Ptr {
		s := GenerateJSONSchema(t.Elem())
		s.Nullable = true
		return s
	}
	if t.Kind() == reflect.Struct && t != timeType {
		return structSchema(t, map[reflect.Type]bool{})
	}
	return GenerateFieldSchema(t)
}

// GenerateFieldSchema generates schema for a specific field type.
func GenerateFieldSchema(t reflect.Type) *tool.Schema {
	return fieldSchema(t, map[reflect.Type]bool{})
}

func fieldSchema(t reflect.Type, seen map[reflect.Type]bool) *tool.Schema {
	switch t.Kind() {
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &tool.Schema{Type: "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{
			Type:  "array",
			Items: fieldSchema(t.Elem(), seen),
		}
	case reflect.Map:
		return &tool.Schema{
			Type:                 "object",
			AdditionalProperties: fieldSchema(t.Elem(), seen),
		}
	case reflect.Ptr:
		s := fieldSchema(t.Elem(), seen)
		s.Nullable = true
		return s
	case reflect.Struct:
		if t == timeType {
			return &tool.Schema{Type: "string", Description: "RFC 3339 timestamp"}
		}
		if seen[t] {
			// Recursive types collapse to an open object.
			return &tool.Schema{Type: "object"}
		}
		return structSchema(t, seen)
	default:
		return &tool.Schema{}
	}
}

func structSchema(t reflect.Type, seen map[reflect.Type]bool) *tool.Schema {
	seen[t] = true
	defer delete(seen, t)

	schema := &tool.Schema{
		Type:       "object",
		Properties: map[string]*tool.Schema{},
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}
		fs := fieldSchema(field.Type, seen)
		forceRequired := annotate(fs, field)
		schema.Properties[name] = fs
		if forceRequired || (field.Type.Kind() != reflect.Ptr && !omitEmpty) {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}

func jsonName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// annotate applies the jsonschema tag and reports whether the field is
// explicitly marked required.
func annotate(s *tool.Schema, field reflect.StructField) bool {
	tag := field.Tag.Get("jsonschema")
	if tag == "" {
		return false
	}
	required := false
	for _, part := range splitTag(tag) {
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "description":
			s.Description = value
		case "enum":
			s.Enum = append(s.Enum, enumValue(s.Type, value))
		case "required":
			required = true
		}
	}
	return required
}

// splitTag splits on commas that start a new key, so descriptions may
// contain commas.
func splitTag(tag string) []string {
	var parts []string
	for _, p := range strings.Split(tag, ",") {
		if len(parts) > 0 && !strings.Contains(p, "=") && p != "required" {
			parts[len(parts)-1] += "," + p
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

func enumValue(typ, raw string) any {
	switch typ {
	case "integer":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "number":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}
