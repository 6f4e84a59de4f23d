package cmd

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/framelink/internal/config"
)

// bindFlags registers one flag per Options field whose toml section is listed
// (fields without a toml tag are always bound). Flag names match what
// config.LoadConfig expects, so flags set on the command line win over the
// config file and environment.
func bindFlags(cmd *cobra.Command, opts *Options, sections ...string) {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	flags := cmd.Flags()

	for i := range t.NumField() {
		field := t.Field(i)
		if !inSections(field.Tag.Get("toml"), sections) {
			continue
		}

		name := config.FlagName(field.Name)
		help := field.Tag.Get("help")
		short := field.Tag.Get("short")
		def := field.Tag.Get("default")
		ptr := v.Field(i).Addr().Interface()

		switch p := ptr.(type) {
		case *string:
			flags.StringVarP(p, name, short, def, help)
		case *bool:
			b, _ := strconv.ParseBool(def)
			flags.BoolVarP(p, name, short, b, help)
		case *int:
			n, _ := strconv.Atoi(def)
			flags.IntVarP(p, name, short, n, help)
		case *uint32:
			n, _ := strconv.ParseUint(def, 10, 32)
			flags.Uint32VarP(p, name, short, uint32(n), help)
		case *uint64:
			n, _ := strconv.ParseUint(def, 10, 64)
			flags.Uint64VarP(p, name, short, n, help)
		case *float64:
			f, _ := strconv.ParseFloat(def, 64)
			flags.Float64VarP(p, name, short, f, help)
		default:
			panic(fmt.Sprintf("unsupported option type %s for %s", field.Type, field.Name))
		}
	}

	flags.SortFlags = false
}

func inSections(tomlPath string, sections []string) bool {
	if tomlPath == "" {
		return true
	}
	section, _, _ := strings.Cut(tomlPath, ".")
	for _, s := range sections {
		if s == section {
			return true
		}
	}
	return false
}

// changedFlags lists flags set on the command line, for logging.
func changedFlags(cmd *cobra.Command) []string {
	var names []string
	cmd.Flags().Visit(func(f *pflag.Flag) {
		names = append(names, f.Name)
	})
	return names
}
