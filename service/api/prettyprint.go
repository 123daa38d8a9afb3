package api

import (
	"fmt"
	"reflect"
	"strings"
)

const (
	// Arrays of strings longer than this are printed one element per line.
	maxShortStringLen = 7
	indentString      = "\t"
)

// SinglelineString returns a representation of v on a single line.
func (v *Variable) SinglelineString() string {
	var p printer
	p.variable(v, true, false, true, "")
	return p.String()
}

// MultilineString returns a representation of v where composite values
// are spread over multiple lines, each prefixed by indent.
func (v *Variable) MultilineString(indent string) string {
	var p printer
	p.variable(v, true, true, true, indent)
	return p.String()
}

// TypeString returns v.Type quoted when it contains a package path, in the
// form accepted by the expression evaluator in type casts.
func (v *Variable) TypeString() string {
	if strings.Contains(v.Type, "/") {
		return fmt.Sprintf("%q", v.Type)
	}
	return v.Type
}

// printer renders variables the way the print command shows them.
type printer struct {
	strings.Builder
}

func (p *printer) variable(v *Variable, top, newlines, withType bool, indent string) {
	switch {
	case v.Unreadable != "":
		fmt.Fprintf(p, "(unreadable %s)", v.Unreadable)
		return
	case !top && v.Addr == 0 && v.Value == "":
		if withType && v.Type != "void" {
			p.WriteString(v.Type + " ")
		}
		p.WriteString("nil")
		return
	}

	switch v.Kind {
	case reflect.Slice:
		if withType {
			fmt.Fprintf(p, "%s len: %d, cap: %d, ", v.Type, v.Len, v.Cap)
		}
		if v.Base == 0 && len(v.Children) == 0 {
			p.WriteString("nil")
			return
		}
		p.array(v, newlines, indent)
	case reflect.Array:
		if withType {
			p.WriteString(v.Type + " ")
		}
		p.array(v, newlines, indent)
	case reflect.Ptr:
		switch {
		case v.Type == "" || len(v.Children) == 0:
			p.WriteString("nil")
		case v.Children[0].OnlyAddr && v.Children[0].Addr != 0:
			fmt.Fprintf(p, "(%s)(%#x)", v.TypeString(), v.Children[0].Addr)
		default:
			p.WriteByte('*')
			p.variable(&v.Children[0], false, newlines, withType, indent)
		}
	case reflect.String:
		s := v.Value
		if missing := int(v.Len) - len(s); missing != 0 {
			s += fmt.Sprintf("...+%d more", missing)
		}
		fmt.Fprintf(p, "%q", s)
	case reflect.Struct:
		p.structure(v, newlines, withType, indent)
	case reflect.Interface:
		if v.Addr == 0 || len(v.Children) == 0 {
			p.WriteString("nil")
			return
		}
		if withType {
			fmt.Fprintf(p, "%s(%s) ", v.Type, v.Children[0].Type)
		}
		// the concrete type was just printed
		p.variable(&v.Children[0], false, newlines, !withType, indent)
	default:
		if v.Value == "" {
			fmt.Fprintf(p, "(unknown %s)", v.Kind)
			return
		}
		p.WriteString(v.Value)
	}
}

func (p *printer) structure(v *Variable, newlines, withType bool, indent string) {
	if len(v.Children) == 0 && v.Len != 0 {
		fmt.Fprintf(p, "(*%s)(%#x)", v.TypeString(), v.Addr)
		return
	}
	if withType {
		p.WriteString(v.Type + " ")
	}
	nl := newlines && len(v.Children) > 0
	p.elems("{", "}", ", ", v, nl, indent, func(field *Variable, indent string) {
		p.WriteString(field.Name + ": ")
		p.variable(field, false, nl, true, indent)
	})
}

func (p *printer) array(v *Variable, newlines bool, indent string) {
	nl := newlines && spreadArray(v.Children)
	p.elems("[", "]", ",", v, nl, indent, func(elem *Variable, indent string) {
		p.variable(elem, false, nl, false, indent)
	})
}

// elems writes the children of v between open and close, followed by a
// marker for the ones that were not loaded.
func (p *printer) elems(open, close, sep string, v *Variable, nl bool, indent string, elem func(*Variable, string)) {
	inner := indent + indentString
	p.WriteString(open)
	for i := range v.Children {
		if nl {
			p.WriteString("\n" + inner)
		}
		elem(&v.Children[i], inner)
		if nl {
			p.WriteByte(',')
		} else if i < len(v.Children)-1 {
			p.WriteString(sep)
		}
	}
	if missing := int(v.Len) - len(v.Children); missing != 0 {
		switch {
		case len(v.Children) == 0:
			p.WriteString("...")
		case nl:
			fmt.Fprintf(p, "\n%s...+%d more", inner, missing)
		default:
			fmt.Fprintf(p, ",...+%d more", missing)
		}
	}
	if nl {
		p.WriteString("\n" + indent)
	}
	p.WriteString(close)
}

func spreadArray(elems []Variable) bool {
	if len(elems) == 0 {
		return false
	}
	switch elems[0].Kind {
	case reflect.Slice, reflect.Array, reflect.Struct, reflect.Map, reflect.Interface:
		return true
	case reflect.String:
		for i := range elems {
			if len(elems[i].Value) > maxShortStringLen {
				return true
			}
		}
	}
	return false
}
