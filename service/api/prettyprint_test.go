package api

import (
	"reflect"
	"testing"
)

func TestSinglelineString(t *testing.T) {
	tests := []struct {
		name string
		v    Variable
		want string
	}{
		{
			name: "byte slice",
			v: Variable{Kind: reflect.Slice, Type: "[]uint8", Len: 4, Cap: 8, Base: 0xc000010000, Children: []Variable{
				{Kind: reflect.Uint8, Value: "80", Addr: 0xc000010000},
				{Kind: reflect.Uint8, Value: "78", Addr: 0xc000010001},
			}},
			want: "[]uint8 len: 4, cap: 8, [80,78,...+2 more]",
		},
		{
			name: "nil slice",
			v:    Variable{Kind: reflect.Slice, Type: "[]uint8"},
			want: "[]uint8 len: 0, cap: 0, nil",
		},
		{
			name: "truncated string",
			v:    Variable{Kind: reflect.String, Type: "string", Value: "shot", Len: 8},
			want: `"shot...+4 more"`,
		},
		{
			name: "pointer only address",
			v: Variable{Kind: reflect.Ptr, Type: "*github.com/acme/app.View", Children: []Variable{
				{OnlyAddr: true, Addr: 0xc0000a2000},
			}},
			want: `("*github.com/acme/app.View")(0xc0000a2000)`,
		},
		{
			name: "struct",
			v: Variable{Kind: reflect.Struct, Type: "main.View", Len: 1, Addr: 0x10, Children: []Variable{
				{Name: "Name", Kind: reflect.String, Type: "string", Value: "root", Len: 4, Addr: 0x10},
			}},
			want: `main.View {Name: "root"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.SinglelineString(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	v := Variable{Type: "*main.View"}
	if got := v.TypeString(); got != "*main.View" {
		t.Errorf("unexpected %q", got)
	}
	v.Type = "*example.com/pkg.View"
	if got := v.TypeString(); got != `"*example.com/pkg.View"` {
		t.Errorf("unexpected %q", got)
	}
}

func TestMultilineString(t *testing.T) {
	v := Variable{Kind: reflect.Struct, Type: "main.View", Len: 2, Addr: 0x10, Children: []Variable{
		{Name: "Name", Kind: reflect.String, Type: "string", Value: "root", Len: 4, Addr: 0x10},
		{Name: "Tags", Kind: reflect.Slice, Type: "[]string", Len: 3, Cap: 3, Base: 0x20, Addr: 0x20, Children: []Variable{
			{Kind: reflect.String, Type: "string", Value: "background", Len: 10, Addr: 0x20},
			{Kind: reflect.String, Type: "string", Value: "hidden", Len: 6, Addr: 0x30},
		}},
	}}
	want := "main.View {\n" +
		"\tName: \"root\",\n" +
		"\tTags: []string len: 3, cap: 3, [\n" +
		"\t\t\"background\",\n" +
		"\t\t\"hidden\",\n" +
		"\t\t...+1 more\n" +
		"\t],\n" +
		"}"
	if got := v.MultilineString(""); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
