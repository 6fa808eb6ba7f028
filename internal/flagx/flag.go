// Package flagx lets several components share os.Args without tripping over
// each other's flags: every component filters the arguments down to the
// flags it owns before handing them to its own flag.FlagSet.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnv names the environment variable consulted when no -c/-config
// flag is given.
const ConfigEnv = "DRIVEINGEST_CONFIG"

// FilterArgs returns the subset of args made of allowed flags and their
// values. Both single and double dash spellings of an allowed flag are
// accepted, the same way package flag accepts them.
//
// Supported formats:
//
//	-c conf.json
//	--config=conf.json
//
// A separate value is only consumed when it does not itself start with '-'.
// Boolean flags must therefore be passed in the "-flag=value" form.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[canonical(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[canonical(name)]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if _, ok := allowed[canonical(arg)]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

func canonical(name string) string {
	return "-" + strings.TrimLeft(name, "-")
}

// ConfigFileFlag extracts the configuration file path given by -c or
// -config in args. The last occurrence wins; "" means none was given.
func ConfigFileFlag(args []string) string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return config
}

// JsonConfigFlags returns the config path from the process arguments,
// falling back to the DRIVEINGEST_CONFIG environment variable.
func JsonConfigFlags() string {
	if p := ConfigFileFlag(os.Args[1:]); p != "" {
		return p
	}
	return os.Getenv(ConfigEnv)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
