package starbind

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"go.starlark.net/starlark"

	"github.com/go-delve/quicklook/service/api"
)

// toStarlark converts a Go value, usually part of a server reply, into a
// starlark value. Structs and slices are wrapped, not copied.
func (env *Env) toStarlark(v interface{}) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return v
	case []byte:
		return starlark.Bytes(v)
	case error:
		return starlark.String(v.Error())
	case fmt.Stringer:
		return starlark.String(v.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return starlark.Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return starlark.MakeUint64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return starlark.Float(rv.Float())
	case reflect.String:
		return starlark.String(rv.String())
	case reflect.Ptr:
		if rv.IsNil() {
			return starlark.None
		}
		if rv.Elem().Kind() == reflect.Struct {
			return goStruct{rv.Elem(), env}
		}
	case reflect.Struct:
		return goStruct{rv, env}
	case reflect.Slice:
		return goSlice{rv, env}
	}
	return starlark.String(fmt.Sprintf("%v", v))
}

// goSlice exposes a Go slice as an indexable starlark sequence.
type goSlice struct {
	v   reflect.Value
	env *Env
}

var (
	_ starlark.Indexable = goSlice{}
	_ starlark.Sequence  = goSlice{}
)

func (s goSlice) Freeze()               {}
func (s goSlice) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", s.Type()) }
func (s goSlice) String() string        { return fmt.Sprintf("%v", s.v.Interface()) }
func (s goSlice) Truth() starlark.Bool  { return s.v.Len() != 0 }
func (s goSlice) Type() string          { return s.v.Type().String() }
func (s goSlice) Len() int              { return s.v.Len() }
func (s goSlice) Index(i int) starlark.Value {
	return s.env.toStarlark(s.v.Index(i).Interface())
}

func (s goSlice) Iterate() starlark.Iterator {
	return &goSliceIterator{s: s}
}

type goSliceIterator struct {
	s   goSlice
	cur int
}

func (it *goSliceIterator) Done() {}

func (it *goSliceIterator) Next(p *starlark.Value) bool {
	if it.cur >= it.s.Len() {
		return false
	}
	*p = it.s.Index(it.cur)
	it.cur++
	return true
}

// goStruct exposes the fields of a Go struct as starlark attributes. The
// Value attribute of an api.Variable is converted to a starlark value of
// the variable's kind.
type goStruct struct {
	v   reflect.Value
	env *Env
}

var _ starlark.HasAttrs = goStruct{}

func (s goStruct) Freeze()               {}
func (s goStruct) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", s.Type()) }
func (s goStruct) Truth() starlark.Bool  { return true }

func (s goStruct) String() string {
	if v, ok := s.variable(); ok {
		return fmt.Sprintf("Variable<%s>", v.SinglelineString())
	}
	return fmt.Sprintf("%+v", s.v.Interface())
}

func (s goStruct) Type() string {
	if v, ok := s.variable(); ok {
		return fmt.Sprintf("Variable<%s>", v.Type)
	}
	return s.v.Type().String()
}

func (s goStruct) variable() (*api.Variable, bool) {
	v, ok := s.v.Interface().(api.Variable)
	return &v, ok
}

func (s goStruct) Attr(name string) (starlark.Value, error) {
	if v, ok := s.variable(); ok && name == "Value" {
		return variableValue(v), nil
	}
	f := s.v.FieldByName(name)
	if !f.IsValid() {
		return nil, fmt.Errorf("%s has no field %q", s.v.Type(), name)
	}
	return s.env.toStarlark(f.Interface()), nil
}

func (s goStruct) AttrNames() []string {
	typ := s.v.Type()
	names := make([]string, typ.NumField())
	for i := range names {
		names[i] = typ.Field(i).Name
	}
	return names
}

// variableValue converts the value of a target variable. Values of
// composite kinds are returned in their printed form.
func variableValue(v *api.Variable) starlark.Value {
	switch v.Kind {
	case reflect.String:
		return starlark.String(v.Value)
	case reflect.Bool:
		return starlark.Bool(v.Value == "true")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(v.Value, 0, 64)
		return starlark.MakeInt64(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, _ := strconv.ParseUint(v.Value, 0, 64)
		return starlark.MakeUint64(n)
	case reflect.Float32, reflect.Float64:
		switch v.Value {
		case "+Inf":
			return starlark.Float(math.Inf(+1))
		case "-Inf":
			return starlark.Float(math.Inf(-1))
		case "NaN":
			return starlark.Float(math.NaN())
		}
		n, _ := strconv.ParseFloat(v.Value, 64)
		return starlark.Float(n)
	}
	return starlark.String(v.SinglelineString())
}

// fromStarlark stores val into the Go variable dst points to, the way
// encoding/json.Unmarshal fills a variable from JSON. Dicts fill structs
// by field name. None leaves dst untouched. path names the argument in
// error messages.
func fromStarlark(val starlark.Value, dst interface{}, path string) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("can not set argument %q: destination is not a pointer", path)
	}
	return setFromStarlark(val, rv.Elem(), path)
}

func setFromStarlark(val starlark.Value, dst reflect.Value, path string) error {
	if val == starlark.None {
		return nil
	}
	converr := func(reason string) error {
		if reason != "" {
			return fmt.Errorf("error setting argument %q: can not convert %s to %s: %s", path, val, dst.Type(), reason)
		}
		return fmt.Errorf("error setting argument %q: can not convert %s to %s", path, val, dst.Type())
	}

	for dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		dst = dst.Elem()
	}

	switch dst.Kind() {
	case reflect.Bool:
		b, ok := val.(starlark.Bool)
		if !ok {
			return converr("")
		}
		dst.SetBool(bool(b))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := val.(starlark.Int)
		if !ok {
			return converr("")
		}
		n, ok := i.Int64()
		if !ok || dst.OverflowInt(n) {
			return converr("out of range")
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, ok := val.(starlark.Int)
		if !ok {
			return converr("")
		}
		n, ok := i.Uint64()
		if !ok || dst.OverflowUint(n) {
			return converr("out of range")
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, ok := starlark.AsFloat(val)
		if !ok {
			return converr("")
		}
		dst.SetFloat(f)
	case reflect.String:
		s, ok := starlark.AsString(val)
		if !ok {
			return converr("")
		}
		dst.SetString(s)
	case reflect.Slice:
		seq, ok := val.(starlark.Indexable)
		if !ok {
			return converr("")
		}
		r := reflect.MakeSlice(dst.Type(), seq.Len(), seq.Len())
		for i := 0; i < seq.Len(); i++ {
			if err := setFromStarlark(seq.Index(i), r.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		dst.Set(r)
	case reflect.Struct:
		switch val := val.(type) {
		case goStruct:
			if val.v.Type() != dst.Type() {
				return converr("")
			}
			dst.Set(val.v)
		case *starlark.Dict:
			for _, k := range val.Keys() {
				name, ok := k.(starlark.String)
				if !ok {
					return converr(fmt.Sprintf("non-string key %s", k))
				}
				field := dst.FieldByName(string(name))
				if !field.IsValid() {
					return converr(fmt.Sprintf("unknown field %q", string(name)))
				}
				fv, _, _ := val.Get(k)
				if err := setFromStarlark(fv, field, path+"."+string(name)); err != nil {
					return err
				}
			}
		default:
			return converr("")
		}
	default:
		return converr("")
	}
	return nil
}
