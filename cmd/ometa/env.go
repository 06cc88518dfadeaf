package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const globalPrefix = "ometa"

// checkEnvironmentVariables sets flags the user did not pass from the
// environment: OMETA_<FLAG> for the root command's flags and
// OMETA_<CMD>_<FLAG> for the flags of a subcommand.
func checkEnvironmentVariables(command *cobra.Command) error {
	var errs []string
	apply := func(prefix string, flags *pflag.FlagSet) {
		v := viper.New()
		v.AutomaticEnv()
		v.SetEnvPrefix(prefix)
		flags.VisitAll(func(f *pflag.Flag) {
			configName := strings.ReplaceAll(f.Name, "-", "_")
			if !f.Changed && v.IsSet(configName) {
				val := v.Get(configName)
				if err := command.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
					errs = append(errs, err.Error())
				}
			}
		})
	}

	if !command.HasParent() {
		apply(globalPrefix, command.Flags())
	} else {
		apply(fmt.Sprintf("%s_%s", globalPrefix, command.Name()), command.LocalFlags())
		apply(globalPrefix, command.InheritedFlags())
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("error mapping environment variables to command flags: %s", strings.Join(errs, "; "))
}
