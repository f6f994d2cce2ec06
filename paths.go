package settingsgateway

import (
	"reflect"
	"strings"
)

// getByPath retrieves a value from a nested map using a dot-separated path.
func getByPath(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	current := any(data)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, exists := m[part]
		if !exists {
			return nil, false
		}
		current = value
	}
	return current, true
}

// setByPath sets a value in a nested map using a dot-separated path, creating
// intermediate maps as needed. Only the leaf is replaced: sibling keys of
// every map along the path are left untouched.
func setByPath(data map[string]any, path string, value any) {
	if data == nil {
		return
	}
	parts := strings.Split(path, ".")
	current := data
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			next := make(map[string]any)
			current[part] = next
			current = next
		}
	}
	current[parts[len(parts)-1]] = value
}

func deepCopyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return deepCopyMap(v)
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = deepCopyValue(item)
		}
		return result
	default:
		return reflectCopyValue(value)
	}
}

// reflectCopyValue copies slice and map values of any dynamic type, such as
// []string defaults registered by Go callers, so snapshots never alias the
// live tree. Other kinds are returned as-is.
func reflectCopyValue(value any) any {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return value
		}
		result := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item := deepCopyValue(rv.Index(i).Interface())
			result.Index(i).Set(reflect.ValueOf(item))
		}
		return result.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return value
		}
		result := reflect.MakeMap(rv.Type())
		iter := rv.MapRange()
		for iter.Next() {
			item := deepCopyValue(iter.Value().Interface())
			result.SetMapIndex(iter.Key(), reflect.ValueOf(item))
		}
		return result.Interface()
	default:
		return value
	}
}

func deepCopyMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	result := make(map[string]any, len(data))
	for key, value := range data {
		result[key] = deepCopyValue(value)
	}
	return result
}

func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch va := a.(type) {
	case map[string]any:
		vb, ok := b.(map[string]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for key, item := range va {
			other, exists := vb[key]
			if !exists || !valuesEqual(item, other) {
				return false
			}
		}
		return true
	case []any:
		vb, ok := b.([]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !valuesEqual(va[i], vb[i]) {
				return false
			}
		}
		return true
	default:
		// Values of uncomparable dynamic types ([]string defaults and the
		// like) must not panic here.
		return reflect.DeepEqual(a, b)
	}
}
