// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Config is the named scalar configuration passed alongside columnar inputs
// in a dispatch. Values are restricted to four scalar kinds plus recursive
// nesting: float64, int64, string, bool, and nested Config. Narrower Go
// numerics (int, int32, float32, ...) are coerced to the canonical kinds on
// encode. No column-shaped value is permitted.
//
// A Config is encoded as a one-row Arrow record batch serialized as an IPC
// stream: the stream carries its own schema, so the native side decodes it
// without prior knowledge of the parameter shapes. Keys are sorted, so
// encoding is deterministic. An empty Config is canonicalized to a nil
// payload.
type Config map[string]any

// EncodeConfig converts a Config into a self-describing byte payload.
// Returns a *PluginError with FailureEncoding when a value is not one of
// the supported scalar kinds, naming the offending key path.
func EncodeConfig(cfg Config) ([]byte, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	mem := memory.NewGoAllocator()

	schema, err := configSchema(cfg, "")
	if err != nil {
		return nil, encodingError(err)
	}

	cols := make([]arrow.Array, schema.NumFields())
	keys := sortedKeys(cfg)
	for i, key := range keys {
		arr, err := buildConfigArray(mem, schema.Field(i).Type, cfg[key], key)
		if err != nil {
			for _, c := range cols[:i] {
				c.Release()
			}
			return nil, encodingError(err)
		}
		cols[i] = arr
	}

	batch := array.NewRecordBatch(schema, cols, 1)
	for _, c := range cols {
		c.Release()
	}
	defer batch.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(batch); err != nil {
		return nil, encodingError(err)
	}
	if err := w.Close(); err != nil {
		return nil, encodingError(err)
	}
	return buf.Bytes(), nil
}

// DecodeConfig is the inverse of EncodeConfig: decode(encode(x)) == x for
// every representable x, with values normalized to the canonical kinds. A
// nil or empty payload decodes to a nil Config.
func DecodeConfig(data []byte) (Config, error) {
	if len(data) == 0 {
		return nil, nil
	}
	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, encodingError(fmt.Errorf("reading config IPC stream: %w", err))
	}
	defer reader.Release()

	if !reader.Next() {
		return nil, encodingError(fmt.Errorf("config IPC stream contains no batch"))
	}
	batch := reader.RecordBatch()
	if batch.NumRows() != 1 {
		return nil, encodingError(fmt.Errorf("config batch has %d rows, want 1", batch.NumRows()))
	}

	cfg := make(Config, batch.NumCols())
	for ci := range batch.NumCols() {
		name := batch.ColumnName(int(ci))
		val, err := configValue(batch.Column(int(ci)), 0, name)
		if err != nil {
			return nil, encodingError(err)
		}
		cfg[name] = val
	}
	return cfg, nil
}

func encodingError(err error) *PluginError {
	return &PluginError{Kind: FailureEncoding, Message: err.Error(), cause: err}
}

func sortedKeys(cfg Config) []string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// configSchema builds the Arrow schema mirroring a Config, fields in sorted
// key order, nested mappings as struct types. path carries the dotted key
// prefix for error messages.
func configSchema(cfg Config, path string) (*arrow.Schema, error) {
	fields, err := configFields(cfg, path)
	if err != nil {
		return nil, err
	}
	return arrow.NewSchema(fields, nil), nil
}

func configFields(cfg Config, path string) ([]arrow.Field, error) {
	keys := sortedKeys(cfg)
	fields := make([]arrow.Field, 0, len(keys))
	for _, key := range keys {
		dt, err := configFieldType(cfg[key], joinPath(path, key))
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: key, Type: dt})
	}
	return fields, nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func configFieldType(v any, path string) (arrow.DataType, error) {
	canon, err := canonicalScalar(v, path)
	if err != nil {
		return nil, err
	}
	switch cv := canon.(type) {
	case float64:
		return arrow.PrimitiveTypes.Float64, nil
	case int64:
		return arrow.PrimitiveTypes.Int64, nil
	case string:
		return arrow.BinaryTypes.String, nil
	case bool:
		return &arrow.BooleanType{}, nil
	case Config:
		fields, err := configFields(cv, path)
		if err != nil {
			return nil, err
		}
		return arrow.StructOf(fields...), nil
	default:
		return nil, fmt.Errorf("unsupported config value %T at %q", v, path)
	}
}

// canonicalScalar coerces a Go value to one of the canonical config kinds:
// float64, int64, string, bool, Config.
func canonicalScalar(v any, path string) (any, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("config value at %q overflows int64", path)
		}
		return int64(val), nil
	case string:
		return val, nil
	case bool:
		return val, nil
	case Config:
		return val, nil
	case map[string]any:
		return Config(val), nil
	case nil:
		return nil, fmt.Errorf("null config value at %q", path)
	default:
		return nil, fmt.Errorf("unsupported config value %T at %q (columns are not permitted in config)", v, path)
	}
}

// buildConfigArray creates a one-element Arrow array for a config value.
func buildConfigArray(mem memory.Allocator, dt arrow.DataType, v any, path string) (arrow.Array, error) {
	canon, err := canonicalScalar(v, path)
	if err != nil {
		return nil, err
	}

	switch dt.ID() {
	case arrow.FLOAT64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Append(canon.(float64))
		return b.NewArray(), nil
	case arrow.INT64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.Append(canon.(int64))
		return b.NewArray(), nil
	case arrow.STRING:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.Append(canon.(string))
		return b.NewArray(), nil
	case arrow.BOOL:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.Append(canon.(bool))
		return b.NewArray(), nil
	case arrow.STRUCT:
		st := dt.(*arrow.StructType)
		sb := array.NewStructBuilder(mem, st)
		defer sb.Release()
		if err := appendConfigStruct(sb, st, canon.(Config), path); err != nil {
			return nil, err
		}
		return sb.NewArray(), nil
	default:
		return nil, fmt.Errorf("unsupported config type %v at %q", dt, path)
	}
}

// appendConfigStruct appends one nested-mapping element to a struct builder.
// The struct type's field order matches the mapping's sorted keys.
func appendConfigStruct(sb *array.StructBuilder, st *arrow.StructType, cfg Config, path string) error {
	sb.Append(true)
	for i := range st.NumFields() {
		f := st.Field(i)
		v, ok := cfg[f.Name]
		if !ok {
			return fmt.Errorf("config key %q vanished during encode", joinPath(path, f.Name))
		}
		if err := appendConfigValue(sb.FieldBuilder(i), f.Type, v, joinPath(path, f.Name)); err != nil {
			return err
		}
	}
	return nil
}

func appendConfigValue(b array.Builder, dt arrow.DataType, v any, path string) error {
	canon, err := canonicalScalar(v, path)
	if err != nil {
		return err
	}
	switch dt.ID() {
	case arrow.FLOAT64:
		b.(*array.Float64Builder).Append(canon.(float64))
	case arrow.INT64:
		b.(*array.Int64Builder).Append(canon.(int64))
	case arrow.STRING:
		b.(*array.StringBuilder).Append(canon.(string))
	case arrow.BOOL:
		b.(*array.BooleanBuilder).Append(canon.(bool))
	case arrow.STRUCT:
		return appendConfigStruct(b.(*array.StructBuilder), dt.(*arrow.StructType), canon.(Config), path)
	default:
		return fmt.Errorf("unsupported config type %v at %q", dt, path)
	}
	return nil
}

// configValue reads one decoded config value from an Arrow array.
func configValue(col arrow.Array, idx int, path string) (any, error) {
	if col.IsNull(idx) {
		return nil, fmt.Errorf("null config value at %q", path)
	}
	switch c := col.(type) {
	case *array.Float64:
		return c.Value(idx), nil
	case *array.Int64:
		return c.Value(idx), nil
	case *array.String:
		return c.Value(idx), nil
	case *array.Boolean:
		return c.Value(idx), nil
	case *array.Struct:
		st := c.DataType().(*arrow.StructType)
		nested := make(Config, st.NumFields())
		for i := range st.NumFields() {
			name := st.Field(i).Name
			val, err := configValue(c.Field(i), idx, joinPath(path, name))
			if err != nil {
				return nil, err
			}
			nested[name] = val
		}
		return nested, nil
	default:
		return nil, fmt.Errorf("unsupported config column type %T at %q", col, path)
	}
}

// --- kwargs structs -------------------------------------------------------

// configType is the reflect.Type of Config, used to recognize nested
// mapping fields in kwargs structs.
var configType = reflect.TypeOf(Config(nil))

// tagInfo holds parsed information from a `udf` struct tag.
type tagInfo struct {
	Name    string
	Default *string // nil if no default
}

// parseTag parses a udf struct tag like "name" or "name,default=false".
func parseTag(tag string) tagInfo {
	parts := strings.Split(tag, ",")
	info := tagInfo{Name: parts[0]}
	for _, part := range parts[1:] {
		if strings.HasPrefix(part, "default=") {
			val := strings.TrimPrefix(part, "default=")
			info.Default = &val
		}
	}
	return info
}

// kwargsSchema builds the Arrow schema describing a kwargs struct type from
// its udf tags, for registration-time validation and introspection. Fields
// appear in declaration order; pointer fields are nullable (optional).
func kwargsSchema(t reflect.Type) (*arrow.Schema, error) {
	if t == nil {
		return nil, fmt.Errorf("kwargs type must be a struct, got nil")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("kwargs type must be a struct, got %v", t.Kind())
	}
	var fields []arrow.Field
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("udf")
		if tag == "" || tag == "-" {
			continue
		}
		info := parseTag(tag)
		dt, nullable, err := kwargsFieldType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("kwargs field %s: %w", f.Name, err)
		}
		fields = append(fields, arrow.Field{Name: info.Name, Type: dt, Nullable: nullable})
	}
	return arrow.NewSchema(fields, nil), nil
}

func kwargsFieldType(t reflect.Type) (arrow.DataType, bool, error) {
	nullable := false
	if t.Kind() == reflect.Ptr {
		nullable = true
		t = t.Elem()
	}
	if t == configType {
		// Shape unknown until call time; described as an open struct.
		return arrow.StructOf(), nullable, nil
	}
	switch t.Kind() {
	case reflect.Float64, reflect.Float32:
		return arrow.PrimitiveTypes.Float64, nullable, nil
	case reflect.Int64, reflect.Int:
		return arrow.PrimitiveTypes.Int64, nullable, nil
	case reflect.String:
		return arrow.BinaryTypes.String, nullable, nil
	case reflect.Bool:
		return &arrow.BooleanType{}, nullable, nil
	case reflect.Struct:
		var fields []arrow.Field
		for i := range t.NumField() {
			f := t.Field(i)
			tag := f.Tag.Get("udf")
			if tag == "" || tag == "-" {
				continue
			}
			info := parseTag(tag)
			dt, fn, err := kwargsFieldType(f.Type)
			if err != nil {
				return nil, false, fmt.Errorf("nested field %s: %w", f.Name, err)
			}
			fields = append(fields, arrow.Field{Name: info.Name, Type: dt, Nullable: fn})
		}
		return arrow.StructOf(fields...), nullable, nil
	default:
		return nil, false, fmt.Errorf("unsupported kwargs field type %v", t)
	}
}

// decodeConfigInto reads an encoded config payload into a udf-tagged struct.
// Decoding is strict: a kind mismatch between an encoded value and its
// tagged field is an error, as is an encoded key with no matching field, or
// a missing key for a non-pointer field without a default. This runs on the
// native side of the boundary, so its failures surface as native compute
// failures to the host.
func decodeConfigInto(data []byte, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("kwargs target must be a non-nil pointer to struct")
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		return fmt.Errorf("kwargs target must point to a struct, got %v", elem.Kind())
	}

	if len(data) == 0 {
		return applyKwargsDefaults(elem)
	}

	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("reading kwargs IPC stream: %w", err)
	}
	defer reader.Release()
	if !reader.Next() {
		return fmt.Errorf("kwargs IPC stream contains no batch")
	}
	batch := reader.RecordBatch()

	return decodeKwargsStruct(batch, elem)
}

func decodeKwargsStruct(batch arrow.RecordBatch, elem reflect.Value) error {
	t := elem.Type()
	consumed := make(map[string]bool, int(batch.NumCols()))

	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("udf")
		if tag == "" || tag == "-" {
			continue
		}
		info := parseTag(tag)

		colIdx := -1
		for ci := range batch.NumCols() {
			if batch.ColumnName(int(ci)) == info.Name {
				colIdx = int(ci)
				break
			}
		}
		if colIdx == -1 {
			if err := applyKwargsDefault(elem.Field(i), f.Type, info); err != nil {
				return err
			}
			continue
		}
		consumed[info.Name] = true

		if err := setKwargsField(elem.Field(i), f.Type, batch.Column(colIdx), info.Name); err != nil {
			return err
		}
	}

	for ci := range batch.NumCols() {
		if name := batch.ColumnName(int(ci)); !consumed[name] {
			return fmt.Errorf("unexpected kwargs key %q", name)
		}
	}
	return nil
}

// applyKwargsDefaults fills every tagged field of a kwargs struct from its
// default= tag, for calls carrying no config at all.
func applyKwargsDefaults(elem reflect.Value) error {
	t := elem.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("udf")
		if tag == "" || tag == "-" {
			continue
		}
		if err := applyKwargsDefault(elem.Field(i), f.Type, parseTag(tag)); err != nil {
			return err
		}
	}
	return nil
}

func applyKwargsDefault(field reflect.Value, fieldType reflect.Type, info tagInfo) error {
	if info.Default != nil {
		if err := setFieldFromString(field, fieldType, *info.Default); err != nil {
			return fmt.Errorf("default for %s: %w", info.Name, err)
		}
		return nil
	}
	if fieldType.Kind() == reflect.Ptr || fieldType == configType {
		return nil // optional, stays nil
	}
	return fmt.Errorf("missing required kwargs key %q", info.Name)
}

// setKwargsField sets one struct field from an Arrow config column, strictly
// matching the encoded kind against the field's type.
func setKwargsField(field reflect.Value, fieldType reflect.Type, col arrow.Array, name string) error {
	isPtr := fieldType.Kind() == reflect.Ptr
	if isPtr {
		fieldType = fieldType.Elem()
	}
	if col.IsNull(0) {
		return fmt.Errorf("kwargs key %q: null value", name)
	}

	fail := func(got string) error {
		return fmt.Errorf("kwargs key %q: expected %s, got %s", name, kwargsKindName(fieldType), got)
	}

	switch c := col.(type) {
	case *array.Float64:
		if fieldType.Kind() != reflect.Float64 && fieldType.Kind() != reflect.Float32 {
			return fail("float")
		}
		setFloatField(field, fieldType, isPtr, c.Value(0))
	case *array.Int64:
		switch fieldType.Kind() {
		case reflect.Int64, reflect.Int:
			setIntField(field, fieldType, isPtr, c.Value(0))
		default:
			return fail("integer")
		}
	case *array.String:
		if fieldType.Kind() != reflect.String {
			return fail("string")
		}
		setStringField(field, fieldType, isPtr, c.Value(0))
	case *array.Boolean:
		if fieldType.Kind() != reflect.Bool {
			return fail("boolean")
		}
		setBoolField(field, fieldType, isPtr, c.Value(0))
	case *array.Struct:
		if fieldType == configType {
			nested, err := configValue(c, 0, name)
			if err != nil {
				return err
			}
			return setConfigField(field, isPtr, nested.(Config))
		}
		if fieldType.Kind() != reflect.Struct {
			return fail("mapping")
		}
		return setNestedKwargsStruct(field, fieldType, isPtr, c, name)
	default:
		return fmt.Errorf("kwargs key %q: unsupported column type %T", name, col)
	}
	return nil
}

func kwargsKindName(t reflect.Type) string {
	if t == configType {
		return "mapping"
	}
	switch t.Kind() {
	case reflect.Float64, reflect.Float32:
		return "float"
	case reflect.Int64, reflect.Int:
		return "integer"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Struct:
		return "mapping"
	default:
		return t.String()
	}
}

func setNestedKwargsStruct(field reflect.Value, fieldType reflect.Type, isPtr bool, structArr *array.Struct, name string) error {
	st := structArr.DataType().(*arrow.StructType)
	result := reflect.New(fieldType).Elem()

	// Present nested batch columns map onto the nested struct's udf tags
	// with the same strictness as the top level.
	consumed := make(map[string]bool, st.NumFields())
	for fi := range fieldType.NumField() {
		goField := fieldType.Field(fi)
		tag := goField.Tag.Get("udf")
		if tag == "" || tag == "-" {
			continue
		}
		info := parseTag(tag)

		childIdx := -1
		for ci := range st.NumFields() {
			if st.Field(ci).Name == info.Name {
				childIdx = ci
				break
			}
		}
		if childIdx == -1 {
			if err := applyKwargsDefault(result.Field(fi), goField.Type, info); err != nil {
				return fmt.Errorf("kwargs key %q: %w", name, err)
			}
			continue
		}
		consumed[info.Name] = true
		if err := setKwargsField(result.Field(fi), goField.Type, structArr.Field(childIdx), joinPath(name, info.Name)); err != nil {
			return err
		}
	}
	for ci := range st.NumFields() {
		if fn := st.Field(ci).Name; !consumed[fn] {
			return fmt.Errorf("unexpected kwargs key %q", joinPath(name, fn))
		}
	}

	if isPtr {
		ptr := reflect.New(fieldType)
		ptr.Elem().Set(result)
		field.Set(ptr)
	} else {
		field.Set(result)
	}
	return nil
}

func setConfigField(field reflect.Value, isPtr bool, cfg Config) error {
	if isPtr {
		ptr := reflect.New(configType)
		ptr.Elem().Set(reflect.ValueOf(cfg))
		field.Set(ptr)
	} else {
		field.Set(reflect.ValueOf(cfg))
	}
	return nil
}

func setStringField(field reflect.Value, fieldType reflect.Type, isPtr bool, val string) {
	if isPtr {
		ptr := reflect.New(fieldType)
		ptr.Elem().SetString(val)
		field.Set(ptr)
	} else {
		field.SetString(val)
	}
}

func setIntField(field reflect.Value, fieldType reflect.Type, isPtr bool, val int64) {
	if isPtr {
		ptr := reflect.New(fieldType)
		ptr.Elem().SetInt(val)
		field.Set(ptr)
	} else {
		field.SetInt(val)
	}
}

func setFloatField(field reflect.Value, fieldType reflect.Type, isPtr bool, val float64) {
	if isPtr {
		ptr := reflect.New(fieldType)
		ptr.Elem().SetFloat(val)
		field.Set(ptr)
	} else {
		field.SetFloat(val)
	}
}

func setBoolField(field reflect.Value, fieldType reflect.Type, isPtr bool, val bool) {
	if isPtr {
		ptr := reflect.New(fieldType)
		ptr.Elem().SetBool(val)
		field.Set(ptr)
	} else {
		field.SetBool(val)
	}
}

// setFieldFromString sets a struct field from a string default value.
func setFieldFromString(field reflect.Value, fieldType reflect.Type, s string) error {
	if fieldType.Kind() == reflect.Ptr {
		ptr := reflect.New(fieldType.Elem())
		if err := setFieldFromString(ptr.Elem(), fieldType.Elem(), s); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}
	switch fieldType.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Int64, reflect.Int:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing int default %q: %w", s, err)
		}
		field.SetInt(v)
	case reflect.Float64, reflect.Float32:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parsing float default %q: %w", s, err)
		}
		field.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("parsing bool default %q: %w", s, err)
		}
		field.SetBool(v)
	default:
		return fmt.Errorf("default value parsing not supported for %v", fieldType.Kind())
	}
	return nil
}
