package terminal

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-delve/quicklook/pkg/config"
)

func configureCmd(t *Term, ctx callContext, args string) error {
	switch args {
	case "-list":
		return configureList(t)
	case "-save":
		return config.SaveConfig(t.conf)
	case "":
		return fmt.Errorf("wrong number of arguments to \"config\"")
	}
	name, value := args, ""
	if v := split2PartsBySpace(args); len(v) == 2 {
		name, value = v[0], v[1]
	}
	if name == "alias" {
		return configureSetAlias(t, value)
	}
	return configureSet(t, name, value)
}

// configKey is a field of config.Config settable by name.
type configKey struct {
	name  string
	field reflect.Value
}

// configKeys lists the fields of conf under their yaml names.
func configKeys(conf *config.Config) []configKey {
	v := reflect.ValueOf(conf).Elem()
	keys := make([]configKey, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		name := v.Type().Field(i).Tag.Get("yaml")
		if comma := strings.IndexByte(name, ','); comma >= 0 {
			name = name[:comma]
		}
		if name == "" || name == "-" {
			continue
		}
		keys = append(keys, configKey{name, v.Field(i)})
	}
	return keys
}

func configureList(t *Term) error {
	w := tabwriter.NewWriter(t.stdout, 0, 8, 1, ' ', 0)
	for _, k := range configKeys(t.conf) {
		if k.name == "aliases" {
			continue
		}
		f := k.field
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				fmt.Fprintf(w, "%s\t<not defined>\n", k.name)
				continue
			}
			f = f.Elem()
		}
		if f.Kind() == reflect.String {
			fmt.Fprintf(w, "%s\t%q\n", k.name, f.String())
		} else {
			fmt.Fprintf(w, "%s\t%v\n", k.name, f)
		}
	}
	return w.Flush()
}

func configureSet(t *Term, name, value string) error {
	var field reflect.Value
	for _, k := range configKeys(t.conf) {
		if k.name == name && k.name != "aliases" {
			field = k.field
		}
	}
	if !field.IsValid() {
		return fmt.Errorf("%q is not a configuration parameter", name)
	}

	typ := field.Type()
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	val := reflect.New(typ)
	switch typ.Kind() {
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("argument to %q must be a number", name)
		}
		if n < 0 {
			return fmt.Errorf("argument to %q must be a number greater than zero", name)
		}
		val.Elem().SetInt(int64(n))
	case reflect.Bool:
		val.Elem().SetBool(value == "true")
	case reflect.String:
		val.Elem().SetString(strings.Trim(value, `"`))
	default:
		return fmt.Errorf("unsupported type for configuration key %q", name)
	}
	if field.Kind() == reflect.Ptr {
		field.Set(val)
	} else {
		field.Set(val.Elem())
	}

	switch name {
	case "prompt":
		if t.conf.Prompt != "" {
			t.prompt = t.conf.Prompt
		}
	case "preview-command", "accessibility-marker":
		t.resetPreviewer()
	}
	return nil
}

// configureSetAlias adds the alias in "<command> <alias>" or removes the
// alias in "<alias>".
func configureSetAlias(t *Term, rest string) error {
	argv := config.SplitQuotedFields(rest, '"')
	switch len(argv) {
	case 1:
		alias := argv[0]
		for cmd, aliases := range t.conf.Aliases {
			kept := aliases[:0]
			for _, a := range aliases {
				if a != alias {
					kept = append(kept, a)
				}
			}
			t.conf.Aliases[cmd] = kept
		}
	case 2:
		cmd, alias := argv[0], argv[1]
		if t.conf.Aliases == nil {
			t.conf.Aliases = map[string][]string{}
		}
		t.conf.Aliases[cmd] = append(t.conf.Aliases[cmd], alias)
	default:
		return fmt.Errorf("wrong number of arguments to \"config alias\"")
	}
	t.cmds.Merge(t.conf.Aliases)
	return nil
}
